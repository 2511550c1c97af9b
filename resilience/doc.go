// Package resilience provides admission control for the HTTP surface.
//
// Three patterns compose through an Executor:
//
//   - Rate Limiter: a token bucket (golang.org/x/time/rate) that rejects or
//     briefly delays requests over the configured rate.
//   - Bulkhead: a weighted semaphore (golang.org/x/sync/semaphore) that caps
//     concurrent requests.
//   - Timeout: a deadline placed on the request context.
//
// Middleware applies an Executor to an http.Handler and maps rejections to
// 429, 503 and 504.
//
//	exec := resilience.NewExecutor(
//	    resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 200, Burst: 50})),
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 64})),
//	    resilience.WithTimeout(10*time.Second),
//	)
//	r.Use(resilience.Middleware(exec))
package resilience
