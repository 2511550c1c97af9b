package resilience

import (
	"context"
	"time"
)

// Executor composes the admission patterns.
type Executor struct {
	rateLimiter *RateLimiter
	bulkhead    *Bulkhead
	timeout     *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRateLimiter adds rate limiting to the executor.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) {
		e.rateLimiter = rl
	}
}

// WithBulkhead adds bulkhead isolation to the executor.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) {
		e.bulkhead = b
	}
}

// WithTimeout adds timeout to the executor.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout})
	}
}

// Bulkhead returns the configured bulkhead, or nil.
func (e *Executor) Bulkhead() *Bulkhead {
	return e.bulkhead
}

// Execute runs the operation through all configured patterns.
//
// The execution order is:
// 1. Rate Limiter (if configured) - limits request rate
// 2. Bulkhead (if configured) - limits concurrency
// 3. Timeout (if configured) - limits execution time
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	execute := op

	if e.timeout != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.timeout.Execute(ctx, inner)
		}
	}

	if e.bulkhead != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.bulkhead.Execute(ctx, inner)
		}
	}

	if e.rateLimiter != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.rateLimiter.Execute(ctx, inner)
		}
	}

	return execute(ctx)
}
