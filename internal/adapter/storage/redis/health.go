package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	canaryKey   = keyPrefix + "health:canary"
	pingTimeout = time.Second
)

// HealthCheck verifies that the ack cache is writable. A read-only replica
// answers PING but would silently stop caching acks.
type HealthCheck struct {
	client *goredis.Client
}

func NewHealthCheck(client *goredis.Client) *HealthCheck {
	return &HealthCheck{client: client}
}

// Ping writes and reads back a short-lived canary key.
func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := h.client.Set(ctx, canaryKey, stamp, 10*time.Second).Err(); err != nil {
		return fmt.Errorf("writing canary key: %w", err)
	}
	got, err := h.client.Get(ctx, canaryKey).Result()
	if err != nil {
		return fmt.Errorf("reading canary key: %w", err)
	}
	if got != stamp {
		return fmt.Errorf("canary key mismatch")
	}
	return nil
}

func (h *HealthCheck) Name() string { return "redis" }
