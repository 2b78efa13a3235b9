package service

import (
	"sync"

	"github.com/rs/zerolog"
)

const defaultMaintenanceMessage = "System is under maintenance. Please try again later."

// MaintenanceService implements ports.MaintenanceGate.
type MaintenanceService struct {
	mu      sync.RWMutex
	enabled bool
	message string
	log     zerolog.Logger
}

// NewMaintenanceService creates the gate with its initial state.
func NewMaintenanceService(enabled bool, message string, log zerolog.Logger) *MaintenanceService {
	if message == "" {
		message = defaultMaintenanceMessage
	}
	return &MaintenanceService{enabled: enabled, message: message, log: log}
}

// IsEnabled reports whether public entry points are closed.
func (s *MaintenanceService) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Status returns the flag and the message shown to callers.
func (s *MaintenanceService) Status() (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled, s.message
}

// SetEnabled toggles the gate. An empty message keeps the current one.
func (s *MaintenanceService) SetEnabled(enabled bool, message string) {
	s.mu.Lock()
	s.enabled = enabled
	if message != "" {
		s.message = message
	}
	s.mu.Unlock()

	s.log.Warn().Bool("enabled", enabled).Str("message", message).Msg("maintenance mode changed")
}
