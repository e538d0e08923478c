package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces successive provider calls a fixed interval apart. The
// first Wait returns immediately; each later Wait blocks until the interval
// since the previous admitted call has elapsed. Callers that stop after
// their last call therefore never pay a trailing delay.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	totalConsumed int64
	totalWaited   time.Duration
}

// NewRateLimiter creates a limiter with the given minimum spacing between
// calls. A non-positive interval disables waiting.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval}
}

// Wait blocks until the next call may proceed or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	now := time.Now()
	var wait time.Duration
	if !r.last.IsZero() && r.interval > 0 {
		if elapsed := now.Sub(r.last); elapsed < r.interval {
			wait = r.interval - elapsed
		}
	}
	r.last = now.Add(wait)
	r.totalConsumed++
	r.totalWaited += wait
	r.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// Stats returns the number of admitted calls and the cumulative time spent
// waiting.
func (r *RateLimiter) Stats() (consumed int64, waited time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalConsumed, r.totalWaited
}
