package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// hitScript runs one rate-limit step for an actor atomically.
//
// KEYS[1] sorted set of hit timestamps, KEYS[2] ban deadline. All times are
// unix milliseconds computed by the caller so the script never formats numbers.
// ARGV: now, cutoff, limit, ban, banned_until, window, member.
// Returns {allowed, banned, remaining, retry_after_ms}.
var hitScript = goredis.NewScript(`
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[3])
local ban = tonumber(ARGV[4])

local until_ms = redis.call('GET', KEYS[2])
if until_ms then
  until_ms = tonumber(until_ms)
  if now < until_ms then
    return {0, 1, 0, until_ms - now}
  end
  redis.call('DEL', KEYS[1], KEYS[2])
end

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
if count >= limit then
  redis.call('SET', KEYS[2], ARGV[5], 'PX', ARGV[4] + ARGV[6])
  return {0, 1, 0, ban}
end

redis.call('ZADD', KEYS[1], ARGV[1], ARGV[7])
redis.call('PEXPIRE', KEYS[1], ARGV[6])
return {1, 0, limit - count - 1, 0}
`)

// RateLimitStore implements ports.RateLimitStore backed by Redis.
type RateLimitStore struct {
	client *goredis.Client
	prefix string
}

// NewRateLimitStore creates a new Redis-backed rate limit store.
func NewRateLimitStore(client *goredis.Client) *RateLimitStore {
	return &RateLimitStore{
		client: client,
		prefix: keyPrefix + "ratelimit:",
	}
}

func (s *RateLimitStore) keys(actorID string) []string {
	// hash tag keeps both keys in one cluster slot
	base := s.prefix + "{" + actorID + "}"
	return []string{base + ":hits", base + ":ban"}
}

// Hit records one request at now and returns the decision.
func (s *RateLimitStore) Hit(ctx context.Context, actorID string, now time.Time, policy ports.RateLimitPolicy) (domain.RateLimitDecision, error) {
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	windowMs := policy.Window.Milliseconds()
	banMs := policy.Ban.Milliseconds()

	res, err := hitScript.Run(ctx, s.client, s.keys(actorID),
		strconv.FormatInt(nowMs, 10),
		strconv.FormatInt(nowMs-windowMs, 10),
		policy.Limit,
		strconv.FormatInt(banMs, 10),
		strconv.FormatInt(nowMs+banMs, 10),
		strconv.FormatInt(windowMs, 10),
		member,
	).Int64Slice()
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("redis rate limit hit: %w", err)
	}
	if len(res) != 4 {
		return domain.RateLimitDecision{}, fmt.Errorf("redis rate limit hit: unexpected reply %v", res)
	}

	return domain.RateLimitDecision{
		Allowed:    res[0] == 1,
		Banned:     res[1] == 1,
		Remaining:  int(res[2]),
		RetryAfter: time.Duration(res[3]) * time.Millisecond,
	}, nil
}

// Reset clears the window and any ban for an actor.
func (s *RateLimitStore) Reset(ctx context.Context, actorID string) error {
	if err := s.client.Del(ctx, s.keys(actorID)...).Err(); err != nil {
		return fmt.Errorf("redis rate limit reset: %w", err)
	}
	return nil
}
