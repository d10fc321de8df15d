package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/callgear-sync/cg-webhook/internal/metrics"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// Scores are microseconds so they stay exact as Lua numbers.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local current = redis.call('ZCARD', key)
	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('EXPIRE', key, ttl)
		return 1
	end
	return 0
`)

const keyPrefix = "cgwebhook:ratelimit:"

type redisRateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRedisRateLimiter connects to redisURL and allows limit requests per key per window.
func NewRedisRateLimiter(redisURL string, limit int, window time.Duration) (RateLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return newWithClient(client, limit, window), nil
}

func newWithClient(client *redis.Client, limit int, window time.Duration) *redisRateLimiter {
	return &redisRateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Allow implements sliding window rate limiting using Redis.
func (r *redisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := r.now().UnixMicro()
	windowStart := now - r.window.Microseconds()
	ttl := int64(r.window.Seconds()) + 1

	result, err := slidingWindow.Run(ctx, r.client,
		[]string{keyPrefix + key},
		now, windowStart, r.limit, ttl, uuid.NewString(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	allowed := result == 1
	if !allowed {
		metrics.RateLimitHits.Inc()
	}

	return allowed, nil
}

func (r *redisRateLimiter) Close() error {
	return r.client.Close()
}

// NoOpRateLimiter always allows requests.
type NoOpRateLimiter struct{}

func (n *NoOpRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return true, nil
}

func (n *NoOpRateLimiter) Close() error {
	return nil
}
