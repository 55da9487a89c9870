// Package handler exposes the compliance summary endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"finreg/internal/report"
	"finreg/pkg/platform/httputil"
)

// Service produces the portfolio aggregate.
type Service interface {
	ComplianceSummary(ctx context.Context) (*report.ComplianceSummary, error)
}

// Handler wires the report endpoints to the report service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a report handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts report endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/reports/compliance-summary", h.HandleComplianceSummary)
}

// HandleComplianceSummary handles GET /reports/compliance-summary requests.
func (h *Handler) HandleComplianceSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.ComplianceSummary(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}
