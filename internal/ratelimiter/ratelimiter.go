package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter paces work items using the token bucket algorithm.
//
// It wraps golang.org/x/time/rate. The thumbnail worker uses it to bound how
// many jobs per second are pulled from the queue so image decoding does not
// starve the HTTP handlers of CPU.
//
// A RateLimiter created with a zero rate never blocks.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing perSecond items per second with the
// given burst. A zero perSecond disables limiting. A zero burst is raised to 1
// so that Wait can ever succeed.
func New(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = 1
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Allow reports whether one item may proceed now, consuming a token if so.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Unlimited reports whether the limiter lets everything through.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}

// SetLimit changes the sustained rate. Zero removes the limit.
func (r *RateLimiter) SetLimit(perSecond float64) {
	if perSecond <= 0 {
		r.limiter.SetLimit(rate.Inf)
		return
	}
	r.limiter.SetLimit(rate.Limit(perSecond))
	if r.limiter.Burst() == 0 {
		r.limiter.SetBurst(1)
	}
}
