package redis_test

import (
	"context"
	"testing"
	"time"

	"vending-gateway/internal/adapter/storage/redis"
	"vending-gateway/internal/core/ports"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitStore_Hit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := redis.NewRateLimitStore(client)
	ctx := context.Background()
	policy := ports.RateLimitPolicy{Limit: 3, Window: time.Minute, Ban: 5 * time.Minute}
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("allows requests within limit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			d, err := store.Hit(ctx, "chat-1", t0.Add(time.Duration(i)*time.Second), policy)
			require.NoError(t, err)
			assert.True(t, d.Allowed, "request %d should be allowed", i+1)
			assert.Equal(t, 2-i, d.Remaining)
		}
	})

	t.Run("bans on the request past the limit", func(t *testing.T) {
		d, err := store.Hit(ctx, "chat-1", t0.Add(10*time.Second), policy)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.True(t, d.Banned)
		assert.Equal(t, 5*time.Minute, d.RetryAfter)
	})

	t.Run("stays banned with remaining time", func(t *testing.T) {
		d, err := store.Hit(ctx, "chat-1", t0.Add(70*time.Second), policy)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, 4*time.Minute, d.RetryAfter)
	})

	t.Run("ban expiry clears the window", func(t *testing.T) {
		d, err := store.Hit(ctx, "chat-1", t0.Add(10*time.Second+5*time.Minute), policy)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.False(t, d.Banned)
		assert.Equal(t, 2, d.Remaining)
	})

	t.Run("different actors are independent", func(t *testing.T) {
		d, err := store.Hit(ctx, "chat-2", t0, policy)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2, d.Remaining)
	})
}

func TestRateLimitStore_WindowSlides(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := redis.NewRateLimitStore(client)
	ctx := context.Background()
	policy := ports.RateLimitPolicy{Limit: 2, Window: time.Minute, Ban: time.Minute}
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		d, err := store.Hit(ctx, "a", t0, policy)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	// hits exactly one window old no longer count
	d, err := store.Hit(ctx, "a", t0.Add(time.Minute), policy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRateLimitStore_Reset(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := redis.NewRateLimitStore(client)
	ctx := context.Background()
	policy := ports.RateLimitPolicy{Limit: 1, Window: time.Minute, Ban: time.Hour}
	now := time.Now()

	_, err := store.Hit(ctx, "a", now, policy)
	require.NoError(t, err)
	d, err := store.Hit(ctx, "a", now, policy)
	require.NoError(t, err)
	require.True(t, d.Banned)

	require.NoError(t, store.Reset(ctx, "a"))

	d, err = store.Hit(ctx, "a", now, policy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRateLimitStore_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	store := redis.NewRateLimitStore(client)
	_, err := store.Hit(context.Background(), "a", time.Now(), ports.RateLimitPolicy{Limit: 1, Window: time.Minute, Ban: time.Minute})
	assert.Error(t, err)
}
