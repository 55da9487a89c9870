// Package httptransport assembles the public HTTP surface: the shared
// middleware chain, the operational endpoints, and the versioned API the
// domain handlers mount themselves on. Business logic stays in the
// handler and service packages; this layer only composes them.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	alerthandler "finreg/internal/alert/handler"
	audithandler "finreg/internal/audit/handler"
	entityhandler "finreg/internal/entity/handler"
	"finreg/internal/platform/metrics"
	"finreg/internal/platform/middleware"
	reporthandler "finreg/internal/report/handler"
	violationhandler "finreg/internal/violation/handler"
	"finreg/pkg/platform/httputil"
)

// Handlers collects the domain handlers the router mounts under /api/v1.
type Handlers struct {
	Entities   *entityhandler.Handler
	Violations *violationhandler.Handler
	Alerts     *alerthandler.Handler
	Audit      *audithandler.Handler
	Reports    *reporthandler.Handler
}

// Options carries the cross-cutting pieces of the router.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// RequestTimeout bounds every request. Zero disables the limit.
	RequestTimeout time.Duration

	// Ready reports whether the backing stores are reachable. Nil makes
	// readiness equivalent to liveness.
	Ready func(ctx context.Context) error
}

// NewRouter wires middleware, probes, metrics, and the versioned API.
func NewRouter(h Handlers, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Actor)
	r.Use(middleware.Logger(logger))
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}
	if opts.Metrics != nil {
		r.Use(middleware.LatencyMiddleware(opts.Metrics))
	}

	r.Get("/healthz", handleLiveness)
	r.Get("/readyz", handleReadiness(opts.Ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.ContentTypeJSON)
		h.Entities.Register(api)
		h.Violations.Register(api)
		h.Alerts.Register(api)
		h.Audit.Register(api)
		h.Reports.Register(api)
	})

	return r
}

func handleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "up"})
}

func handleReadiness(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
