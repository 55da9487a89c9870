// Package handler exposes the alert endpoints: the open-alert queues, the
// acknowledge and resolve workflow, and the scheduled rule sweeps.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"finreg/internal/alert/models"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
	"finreg/pkg/platform/httputil"
	"finreg/pkg/requestcontext"
)

// Service is the slice of the alert service the handler drives. Event
// alerts (Raise, RaiseForViolation) are deliberately absent: those fire
// from lifecycle operations, never from a client call.
type Service interface {
	ReviewDue(ctx context.Context) (int, error)
	LicenseExpiring(ctx context.Context, daysBefore int) (int, error)
	OverdueViolations(ctx context.Context, daysOverdue int) (int, error)

	Acknowledge(ctx context.Context, alertID id.AlertID, actor string) (*models.AlertNotification, error)
	Resolve(ctx context.Context, alertID id.AlertID, notes, actor string) (*models.AlertNotification, error)

	Get(ctx context.Context, alertID id.AlertID) (*models.AlertNotification, error)
	ByEntity(ctx context.Context, entityID id.EntityID) ([]*models.AlertNotification, error)
	Unresolved(ctx context.Context) ([]*models.AlertNotification, error)
	HighPriorityOpen(ctx context.Context) ([]*models.AlertNotification, error)
	CountOpen(ctx context.Context) (int, error)
}

// Handler wires alert endpoints to the alert service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates an alert handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts alert endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/count-open", h.HandleCountOpen)

		r.Route("/sweeps", func(r chi.Router) {
			r.Post("/review-due", h.HandleReviewDueSweep)
			r.Post("/license-expiring", h.HandleLicenseExpiringSweep)
			r.Post("/overdue-violations", h.HandleOverdueViolationsSweep)
		})

		r.Route("/{alertID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Post("/acknowledge", h.HandleAcknowledge)
			r.Post("/resolve", h.HandleResolve)
		})
	})
}

// HandleList handles GET /alerts requests. Filters: entity_id for one
// entity's full alert history, high_priority=true for the open HIGH and
// URGENT queue; the default view is every unresolved alert.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		alerts []*models.AlertNotification
		err    error
	)
	switch {
	case q.Get("entity_id") != "":
		var entityID id.EntityID
		if entityID, err = id.ParseEntityID(q.Get("entity_id")); err == nil {
			alerts, err = h.service.ByEntity(ctx, entityID)
		}
	case q.Get("high_priority") == "true":
		alerts, err = h.service.HighPriorityOpen(ctx)
	default:
		alerts, err = h.service.Unresolved(ctx)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NewAlertListResponse(alerts))
}

// HandleCountOpen handles GET /alerts/count-open requests.
func (h *Handler) HandleCountOpen(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.CountOpen(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CountOpenResponse{Count: count})
}

// HandleGet handles GET /alerts/{alertID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	alertID, ok := h.alertIDFromPath(w, r)
	if !ok {
		return
	}

	alert, err := h.service.Get(r.Context(), alertID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alert)
}

// HandleAcknowledge handles POST /alerts/{alertID}/acknowledge requests.
// The acknowledging officer is the request actor; no body is expected.
func (h *Handler) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alertID, ok := h.alertIDFromPath(w, r)
	if !ok {
		return
	}

	alert, err := h.service.Acknowledge(ctx, alertID, requestcontext.Actor(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alert)
}

// HandleResolve handles POST /alerts/{alertID}/resolve requests.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	alertID, ok := h.alertIDFromPath(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ResolveAlertRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	alert, err := h.service.Resolve(ctx, alertID, req.Notes, requestcontext.Actor(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "alert resolution rejected",
			"request_id", requestID,
			"alert_id", alertID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alert)
}

// HandleReviewDueSweep handles POST /alerts/sweeps/review-due requests.
func (h *Handler) HandleReviewDueSweep(w http.ResponseWriter, r *http.Request) {
	created, err := h.service.ReviewDue(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SweepResponse{Rule: "review_due", AlertsCreated: created})
}

// HandleLicenseExpiringSweep handles POST /alerts/sweeps/license-expiring
// requests. The look-ahead window comes from days_before, default 30.
func (h *Handler) HandleLicenseExpiringSweep(w http.ResponseWriter, r *http.Request) {
	daysBefore, err := queryInt(r, "days_before", 30)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	created, err := h.service.LicenseExpiring(r.Context(), daysBefore)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SweepResponse{Rule: "license_expiring", AlertsCreated: created})
}

// HandleOverdueViolationsSweep handles POST /alerts/sweeps/overdue-violations
// requests. The age threshold comes from days_overdue, default 30.
func (h *Handler) HandleOverdueViolationsSweep(w http.ResponseWriter, r *http.Request) {
	daysOverdue, err := queryInt(r, "days_overdue", 30)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	created, err := h.service.OverdueViolations(r.Context(), daysOverdue)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SweepResponse{Rule: "overdue_violations", AlertsCreated: created})
}

func (h *Handler) alertIDFromPath(w http.ResponseWriter, r *http.Request) (id.AlertID, bool) {
	alertID, err := id.ParseAlertID(chi.URLParam(r, "alertID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.AlertID{}, false
	}
	return alertID, true
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be an integer", name)
	}
	return n, nil
}
