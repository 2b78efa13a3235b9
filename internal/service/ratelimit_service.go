package service

import (
	"context"
	"time"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// RateLimitService implements ports.RateLimiter on top of a RateLimitStore.
// Store failures fail open.
type RateLimitService struct {
	store  ports.RateLimitStore
	policy ports.RateLimitPolicy
	now    func() time.Time
	log    zerolog.Logger
}

// NewRateLimitService creates a limiter. now may be nil to use the wall clock.
func NewRateLimitService(store ports.RateLimitStore, policy ports.RateLimitPolicy, now func() time.Time, log zerolog.Logger) *RateLimitService {
	if now == nil {
		now = time.Now
	}
	return &RateLimitService{store: store, policy: policy, now: now, log: log}
}

// Check records one call from actorID and decides whether it may proceed.
func (s *RateLimitService) Check(ctx context.Context, actorID string) domain.RateLimitDecision {
	d, err := s.store.Hit(ctx, actorID, s.now(), s.policy)
	if err != nil {
		s.log.Warn().Err(err).Str("actor_id", actorID).Msg("rate limit store failed, allowing request")
		return domain.RateLimitDecision{Allowed: true, Remaining: s.policy.Limit}
	}
	if !d.Allowed {
		s.log.Warn().
			Str("actor_id", actorID).
			Dur("retry_after", d.RetryAfter).
			Msg("rate limit exceeded")
	}
	return d
}

// Reset clears the actor's window and ban.
func (s *RateLimitService) Reset(ctx context.Context, actorID string) error {
	return s.store.Reset(ctx, actorID)
}

// Policy returns the configured policy.
func (s *RateLimitService) Policy() ports.RateLimitPolicy {
	return s.policy
}
