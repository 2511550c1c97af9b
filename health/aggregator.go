package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout bounds a full CheckAll run.
	// Default: 5 seconds
	Timeout time.Duration

	// Concurrency caps the number of checks running at once.
	// Default: 0 (unbounded)
	Concurrency int
}

// Aggregator combines multiple health checkers into a single composite check.
type Aggregator struct {
	config   AggregatorConfig
	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// NewAggregator creates a new health aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	var cfg AggregatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &Aggregator{
		config:   cfg,
		checkers: make(map[string]Checker),
	}
}

// Register adds a health checker under its own name, replacing any checker
// already registered under that name.
func (a *Aggregator) Register(checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	name := checker.Name()
	if _, exists := a.checkers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.checkers[name] = checker
}

// CheckerNames returns the names of all registered checkers in registration
// order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return append([]string(nil), a.order...)
}

// Check runs a single named health check.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()

	if !ok {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	return runCheck(ctx, checker), nil
}

// CheckAll runs all registered health checks and returns the results keyed by
// checker name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	checkers := make([]Checker, 0, len(a.order))
	for _, name := range a.order {
		checkers = append(checkers, a.checkers[name])
	}
	a.mu.RUnlock()

	results := make(map[string]Result, len(checkers))
	if len(checkers) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	var mu sync.Mutex
	var g errgroup.Group
	if a.config.Concurrency > 0 {
		g.SetLimit(a.config.Concurrency)
	}
	for _, c := range checkers {
		g.Go(func() error {
			r := runCheck(ctx, c)
			mu.Lock()
			results[c.Name()] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// OverallStatus folds results into the most severe status. No results means
// healthy.
func OverallStatus(results map[string]Result) Status {
	overall := StatusHealthy
	for _, r := range results {
		overall = overall.worse(r.Status)
	}
	return overall
}

func runCheck(ctx context.Context, checker Checker) Result {
	start := time.Now()
	resultCh := make(chan Result, 1)

	go func() {
		resultCh <- checker.Check(ctx)
	}()

	select {
	case r := <-resultCh:
		r.Duration = time.Since(start)
		if r.Timestamp.IsZero() {
			r.Timestamp = start
		}
		return r
	case <-ctx.Done():
		r := Unhealthy("check timed out", ErrCheckTimeout)
		r.Duration = time.Since(start)
		r.Timestamp = start
		return r
	}
}
