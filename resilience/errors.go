package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrRateLimitExceeded is returned when the rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("resilience: operation timed out")
)
