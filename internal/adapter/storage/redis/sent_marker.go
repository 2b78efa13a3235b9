package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// SentMarker implements ports.NotificationGuard using Redis SET NX.
type SentMarker struct {
	client *goredis.Client
	prefix string
}

// NewSentMarker creates a Redis-backed notification guard.
func NewSentMarker(client *goredis.Client) *SentMarker {
	return &SentMarker{
		client: client,
		prefix: keyPrefix + "notified:",
	}
}

// MarkSent atomically records key. Returns true if it was not recorded before.
func (s *SentMarker) MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetArgs(ctx, s.prefix+key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			// already marked
			return false, nil
		}
		return false, fmt.Errorf("redis mark sent: %w", err)
	}
	return result == "OK", nil
}
