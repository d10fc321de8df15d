package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func TestNoOpRateLimiter(t *testing.T) {
	limiter := &NoOpRateLimiter{}
	ctx := context.Background()

	for _, key := range []string{"10.0.0.1", "10.0.0.1", ""} {
		for i := 0; i < 10; i++ {
			allowed, err := limiter.Allow(ctx, key)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
	}
	assert.NoError(t, limiter.Close())
}

func TestNewRedisRateLimiter_InvalidURL(t *testing.T) {
	_, err := NewRedisRateLimiter("not-a-valid-url", 100, time.Minute)
	assert.Error(t, err)
}

func TestNewRedisRateLimiter_ConnectionFailed(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisRateLimiter("redis://"+addr, 100, time.Minute)
	assert.Error(t, err)
}

func TestNewRedisRateLimiter_Connects(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	limiter, err := NewRedisRateLimiter("redis://"+mr.Addr(), 2, time.Minute)
	require.NoError(t, err)
	defer limiter.Close()

	allowed, err := limiter.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimiter_SlidingWindow(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()

	limiter := newWithClient(client, 3, time.Minute)
	defer limiter.Close()

	clock := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	limiter.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i+1)
		clock = clock.Add(time.Second)
	}

	allowed, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed, "fourth request inside the window should be rejected")

	t.Run("keys are independent", func(t *testing.T) {
		allowed, err := limiter.Allow(ctx, "10.0.0.2")
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("oldest entry slides out", func(t *testing.T) {
		clock = time.Date(2024, 1, 2, 3, 5, 5, 0, time.UTC)
		allowed, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	assert.True(t, mr.Exists(keyPrefix+"10.0.0.1"))
	assert.Greater(t, mr.TTL(keyPrefix+"10.0.0.1"), time.Duration(0))
}

func TestRedisRateLimiter_RedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	limiter := newWithClient(client, 3, time.Minute)
	defer limiter.Close()

	mr.Close()

	_, err := limiter.Allow(context.Background(), "10.0.0.1")
	assert.Error(t, err)
}
