package auth

import "net/http"

// Middleware resolves the caller of each HTTP request and attaches the
// Identity to the request context.
//
// Usage:
//
//	r.Use(auth.Middleware(resolver))
func Middleware(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := resolver.ResolveIdentity(r.Context(), HeadersFromHTTP(r.Header))
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
