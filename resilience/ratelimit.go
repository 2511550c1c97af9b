package resilience

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Rate is the number of operations allowed per second.
	// Default: 100
	Rate float64

	// Burst is the maximum burst size.
	// Default: 10
	Burst int

	// WaitOnLimit waits for a token instead of returning error.
	// Default: false
	WaitOnLimit bool

	// MaxWait is the maximum time to wait for a token.
	// Default: 1 second
	MaxWait time.Duration
}

// RateLimiter implements a token bucket rate limiter.
type RateLimiter struct {
	config  RateLimiterConfig
	limiter *rate.Limiter
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 100
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if config.MaxWait <= 0 {
		config.MaxWait = time.Second
	}

	return &RateLimiter{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
	}
}

// Allow checks if a request is allowed under the rate limit.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// AllowN checks if n requests are allowed.
func (rl *RateLimiter) AllowN(n int) bool {
	return rl.limiter.AllowN(time.Now(), n)
}

// Wait blocks until a token is available, MaxWait elapses or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, rl.config.MaxWait)
	defer cancel()

	if err := rl.limiter.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrRateLimitExceeded
	}
	return nil
}

// Execute runs the operation if allowed by rate limit.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if rl.config.WaitOnLimit {
		if err := rl.Wait(ctx); err != nil {
			return err
		}
	} else if !rl.Allow() {
		return ErrRateLimitExceeded
	}

	return op(ctx)
}

// Tokens returns the current number of available tokens.
func (rl *RateLimiter) Tokens() float64 {
	return rl.limiter.Tokens()
}

// Config returns the rate limiter configuration.
func (rl *RateLimiter) Config() RateLimiterConfig {
	return rl.config
}
