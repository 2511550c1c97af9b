package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the maximum number of concurrent operations.
	// Default: 10
	MaxConcurrent int

	// MaxWait is the maximum time to wait for a slot.
	// Default: 0 (no waiting, fail immediately)
	MaxWait time.Duration
}

// Bulkhead limits concurrent operations.
type Bulkhead struct {
	config BulkheadConfig
	sem    *semaphore.Weighted

	active    atomic.Int64
	maxActive atomic.Int64
	rejected  atomic.Int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	return &Bulkhead{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrent)),
	}
}

// Acquire acquires a slot in the bulkhead.
// Returns ErrBulkheadFull if no slot becomes available within MaxWait.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	if b.sem.TryAcquire(1) {
		b.acquired()
		return nil
	}

	if b.config.MaxWait <= 0 {
		b.rejected.Add(1)
		return ErrBulkheadFull
	}

	waitCtx, cancel := context.WithTimeout(ctx, b.config.MaxWait)
	defer cancel()

	if err := b.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.rejected.Add(1)
		return ErrBulkheadFull
	}
	b.acquired()
	return nil
}

func (b *Bulkhead) acquired() {
	n := b.active.Add(1)
	for {
		peak := b.maxActive.Load()
		if n <= peak || b.maxActive.CompareAndSwap(peak, n) {
			return
		}
	}
}

// Release releases a slot in the bulkhead. It must follow a successful
// Acquire.
func (b *Bulkhead) Release() {
	b.active.Add(-1)
	b.sem.Release(1)
}

// Execute runs the operation within the bulkhead.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()

	return op(ctx)
}

// Metrics returns current bulkhead metrics.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	active := int(b.active.Load())
	return BulkheadMetrics{
		Active:        active,
		MaxActive:     int(b.maxActive.Load()),
		Available:     b.config.MaxConcurrent - active,
		MaxConcurrent: b.config.MaxConcurrent,
		Rejected:      b.rejected.Load(),
	}
}

// BulkheadMetrics contains bulkhead statistics.
type BulkheadMetrics struct {
	Active        int
	MaxActive     int
	Available     int
	MaxConcurrent int
	Rejected      int64
}
