// Package requesttime stamps each request with a single "now" so every audit
// event emitted while serving it carries the same timestamp.
package requesttime

import (
	"net/http"
	"time"

	"copyroom/pkg/requestcontext"
)

// Middleware captures the time the request arrived.
func Middleware(next http.Handler) http.Handler {
	return MiddlewareWithClock(time.Now)(next)
}

// MiddlewareWithClock is Middleware with an injectable clock.
func MiddlewareWithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
