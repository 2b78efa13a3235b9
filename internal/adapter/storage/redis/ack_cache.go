package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// AckCache implements ports.IdempotencyCache using Redis. It holds the
// acknowledgements of processed payment events; the database stays the
// source of truth.
type AckCache struct {
	client *goredis.Client
	prefix string
}

// NewAckCache creates a new Redis-backed acknowledgement cache.
func NewAckCache(client *goredis.Client) *AckCache {
	return &AckCache{
		client: client,
		prefix: keyPrefix,
	}
}

// Get retrieves a cached value. Returns nil, nil if the key does not exist.
func (c *AckCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis ack cache get: %w", err)
	}
	return val, nil
}

// Set stores a value with TTL.
func (c *AckCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis ack cache set: %w", err)
	}
	return nil
}
