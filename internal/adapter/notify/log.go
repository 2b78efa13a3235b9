package notify

import (
	"context"

	"vending-gateway/internal/core/domain"

	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to the structured log. Text is never
// logged because delivery messages carry credentials.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify logs the notification metadata.
func (n *LogNotifier) Notify(_ context.Context, msg domain.Notification) error {
	event := n.log.Info().
		Str("kind", string(msg.Kind)).
		Str("recipient", msg.Recipient).
		Str("external_ref", msg.ExternalRef)
	for k, v := range msg.Fields {
		event = event.Str(k, v)
	}
	event.Msg("notification")
	return nil
}

// Name returns the notifier name.
func (n *LogNotifier) Name() string {
	return "log"
}
