package resilience

import (
	"context"
	"errors"
	"net/http"
)

// StatusCode maps an admission error to an HTTP status code.
// It returns 0 for errors that are not admission rejections.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrBulkheadFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return 0
	}
}

// Middleware admits each request through exec. Rejected requests get 429,
// 503 or 504 and never reach next.
func Middleware(exec *Executor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var served bool
			err := exec.Execute(r.Context(), func(ctx context.Context) error {
				served = true
				next.ServeHTTP(w, r.WithContext(ctx))
				return nil
			})
			if err == nil || served {
				return
			}
			status := StatusCode(err)
			if status == 0 {
				// Client went away while waiting for admission.
				return
			}
			if status == http.StatusTooManyRequests {
				w.Header().Set("Retry-After", "1")
			}
			http.Error(w, http.StatusText(status), status)
		})
	}
}
