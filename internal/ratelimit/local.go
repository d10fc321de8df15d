package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/callgear-sync/cg-webhook/internal/metrics"
)

// LocalRateLimiter is a per-key token bucket held in process memory. Each
// instance counts on its own, so limits are per replica.
type LocalRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*localEntry
	rate      rate.Limit
	burst     int
	idleTTL   time.Duration
	stopClean chan struct{}
	stopOnce  sync.Once
}

type localEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewLocalRateLimiter refills limit tokens per window, allowing bursts of up to limit.
func NewLocalRateLimiter(limit int, window time.Duration) *LocalRateLimiter {
	if limit < 1 {
		limit = 1
	}
	rl := &LocalRateLimiter{
		limiters:  make(map[string]*localEntry),
		rate:      rate.Every(window / time.Duration(limit)),
		burst:     limit,
		idleTTL:   window * 2,
		stopClean: make(chan struct{}),
	}
	go rl.startCleanup(window)
	return rl
}

func (rl *LocalRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	rl.mu.Lock()
	entry, ok := rl.limiters[key]
	if !ok {
		entry = &localEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastAccess = time.Now()
	limiter := entry.limiter
	rl.mu.Unlock()

	allowed := limiter.Allow()
	if !allowed {
		metrics.RateLimitHits.Inc()
	}
	return allowed, nil
}

func (rl *LocalRateLimiter) startCleanup(interval time.Duration) {
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopClean:
			return
		}
	}
}

// cleanup drops buckets idle long enough to have refilled completely.
func (rl *LocalRateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := now.Add(-rl.idleTTL)
	for key, entry := range rl.limiters {
		if entry.lastAccess.Before(threshold) {
			delete(rl.limiters, key)
		}
	}
}

func (rl *LocalRateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *LocalRateLimiter) Close() error {
	rl.stopOnce.Do(func() { close(rl.stopClean) })
	return nil
}
