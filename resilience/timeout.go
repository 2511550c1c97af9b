package resilience

import (
	"context"
	"errors"
	"time"
)

// TimeoutConfig configures the timeout wrapper.
type TimeoutConfig struct {
	// Timeout is the maximum duration for the operation.
	// Default: 30 seconds
	Timeout time.Duration
}

// Timeout places a deadline on the operation's context. The operation runs
// on the caller's goroutine and must observe ctx to stop early.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a new timeout wrapper.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &Timeout{config: config}
}

// Execute runs the operation with a deadline. A context.DeadlineExceeded
// caused by this deadline is reported as ErrTimeout.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	tctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	err := op(tctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return ErrTimeout
	}
	return err
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}
