package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"finreg/internal/platform/metrics"
)

// LatencyMiddleware records request counts and latency per route. The chi
// route pattern is only known after routing, so the observation happens on
// the way out.
func LatencyMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)

			next.ServeHTTP(sw, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			m.ObserveRequest(route, r.Method, sw.status, time.Since(start))
		})
	}
}
