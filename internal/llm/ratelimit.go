package llm

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces out model calls that share an upstream quota.
// It is a token bucket plus an optional backoff window set after a 429.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter allows one call per interval with no burst. interval <= 0 disables limiting.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	lim := rate.NewLimiter(rate.Inf, 1)
	if interval > 0 {
		lim = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &RateLimiter{limiter: lim}
}

// Wait blocks until a call can be made, honoring any backoff from RecordRateLimitError.
// A nil limiter never blocks.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return ctx.Err()
	}
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(retryAt)):
		}
	}
	return r.limiter.Wait(ctx)
}

// RecordRateLimitError pushes the next allowed call out by retryAfter (default 30s).
func (r *RateLimiter) RecordRateLimitError(retryAfter time.Duration) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if retryAfter <= 0 {
		retryAfter = 30 * time.Second
	}
	r.retryAt = time.Now().Add(retryAfter)
}

// Allow reports whether a call could be made right now without blocking.
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()
	if time.Now().Before(retryAt) {
		return false
	}
	return r.limiter.Allow()
}
