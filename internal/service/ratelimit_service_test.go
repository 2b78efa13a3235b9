package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"vending-gateway/internal/adapter/storage/memory"
	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"
	"vending-gateway/internal/core/ports/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testPolicy = ports.RateLimitPolicy{Limit: 10, Window: time.Minute, Ban: 5 * time.Minute}

// fakeClock is advanced manually by tests.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRateLimit_BanAndRecovery(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	svc := NewRateLimitService(memory.NewRateLimitStore(), testPolicy, clock.now, newTestLogger())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d := svc.Check(ctx, "6726648486")
		require.True(t, d.Allowed, "call %d", i+1)
		clock.advance(time.Second)
	}

	d := svc.Check(ctx, "6726648486")
	assert.False(t, d.Allowed)
	assert.True(t, d.Banned)
	assert.Greater(t, d.RetryAfter, time.Duration(0))

	other := svc.Check(ctx, "123")
	assert.True(t, other.Allowed, "actors are limited independently")

	clock.advance(2 * time.Minute)
	assert.False(t, svc.Check(ctx, "6726648486").Allowed, "still banned")

	clock.advance(5 * time.Minute)
	assert.True(t, svc.Check(ctx, "6726648486").Allowed, "ban expired")
}

func TestRateLimit_Reset(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	svc := NewRateLimitService(memory.NewRateLimitStore(), testPolicy, clock.now, newTestLogger())
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		svc.Check(ctx, "A")
	}
	require.False(t, svc.Check(ctx, "A").Allowed)

	require.NoError(t, svc.Reset(ctx, "A"))
	assert.True(t, svc.Check(ctx, "A").Allowed)
}

func TestRateLimit_StoreFailureAllows(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockRateLimitStore(ctrl)
	store.EXPECT().Hit(gomock.Any(), "A", gomock.Any(), testPolicy).
		Return(domain.RateLimitDecision{}, errors.New("redis: connection refused"))

	svc := NewRateLimitService(store, testPolicy, nil, newTestLogger())
	d := svc.Check(context.Background(), "A")

	assert.True(t, d.Allowed)
	assert.Equal(t, testPolicy.Limit, d.Remaining)
}

func TestRateLimit_PassesDecisionThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockRateLimitStore(ctrl)
	want := domain.RateLimitDecision{Allowed: false, Banned: true, RetryAfter: 4 * time.Minute}
	store.EXPECT().Hit(gomock.Any(), "A", gomock.Any(), testPolicy).Return(want, nil)

	svc := NewRateLimitService(store, testPolicy, nil, newTestLogger())
	assert.Equal(t, want, svc.Check(context.Background(), "A"))
	assert.Equal(t, testPolicy, svc.Policy())
}
