package middleware

import (
	"net/http"
	"time"

	"finreg/pkg/requestcontext"
)

// RequestTime pins one clock reading into the context so every decision made
// while serving the request agrees on what "now" means.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
