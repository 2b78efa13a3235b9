package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

const (
	notifySentTTL        = 24 * time.Hour
	notifyAttemptTimeout = 15 * time.Second
)

// NotificationService implements ports.NotificationDispatcher. Each
// notification is fanned out to every notifier in its own goroutine and
// retried with doubling backoff; failures are only logged.
type NotificationService struct {
	notifiers   []ports.Notifier
	guard       ports.NotificationGuard
	maxAttempts int
	backoff     time.Duration
	log         zerolog.Logger
	sleep       func(time.Duration)
	wg          sync.WaitGroup
}

// NewNotificationService creates a dispatcher. guard may be nil.
func NewNotificationService(
	notifiers []ports.Notifier,
	guard ports.NotificationGuard,
	maxAttempts int,
	backoff time.Duration,
	log zerolog.Logger,
) *NotificationService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &NotificationService{
		notifiers:   notifiers,
		guard:       guard,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		log:         log,
		sleep:       time.Sleep,
	}
}

// Dispatch sends notifications asynchronously and returns immediately.
func (s *NotificationService) Dispatch(notifications ...domain.Notification) {
	for _, n := range notifications {
		for _, notifier := range s.notifiers {
			s.wg.Add(1)
			go func(notifier ports.Notifier, n domain.Notification) {
				defer s.wg.Done()
				s.deliverWithRetries(notifier, n)
			}(notifier, n)
		}
	}
}

// Wait blocks until every dispatched notification has finished.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

func (s *NotificationService) deliverWithRetries(notifier ports.Notifier, n domain.Notification) {
	logger := s.log.With().
		Str("notifier", notifier.Name()).
		Str("kind", string(n.Kind)).
		Str("recipient", n.Recipient).
		Str("external_ref", n.ExternalRef).
		Logger()

	if s.guard != nil && n.ExternalRef != "" {
		key := sentKey(notifier.Name(), n)
		fresh, err := s.guard.MarkSent(context.Background(), key, notifySentTTL)
		if err != nil {
			logger.Warn().Err(err).Msg("notification guard unavailable, sending anyway")
		} else if !fresh {
			logger.Debug().Msg("notification already sent, skipping")
			return
		}
	}

	wait := s.backoff
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			s.sleep(wait)
			wait *= 2
		}

		ctx, cancel := context.WithTimeout(context.Background(), notifyAttemptTimeout)
		err := notifier.Notify(ctx, n)
		cancel()
		if err == nil {
			logger.Debug().Int("attempt", attempt).Msg("notification delivered")
			return
		}
		logger.Warn().Err(err).Int("attempt", attempt).Msg("notification delivery failed")
	}

	logger.Error().Msg("notification: all retry attempts exhausted")
}

func sentKey(notifier string, n domain.Notification) string {
	return strings.Join([]string{notifier, string(n.Kind), n.Recipient, n.ExternalRef}, ":")
}
