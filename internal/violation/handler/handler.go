package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"finreg/internal/violation/models"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
	"finreg/pkg/platform/httputil"
	"finreg/pkg/requestcontext"
)

// Service defines the interface for violation tracking operations.
type Service interface {
	Record(ctx context.Context, candidate *models.Violation, actor string) (*models.Violation, error)
	Resolve(ctx context.Context, violationID id.ViolationID, notes, actor string) (*models.Violation, error)
	RecordPayment(ctx context.Context, violationID id.ViolationID, paymentDate time.Time, actor string) (*models.Violation, error)

	Get(ctx context.Context, violationID id.ViolationID) (*models.Violation, error)
	ByEntity(ctx context.Context, entityID id.EntityID) ([]*models.Violation, error)
	ActiveByEntity(ctx context.Context, entityID id.EntityID) ([]*models.Violation, error)
	Active(ctx context.Context) ([]*models.Violation, error)
	ByStatus(ctx context.Context, status id.ViolationStatus) ([]*models.Violation, error)
	BySeverity(ctx context.Context, severity id.Severity) ([]*models.Violation, error)
	UnpaidFines(ctx context.Context, entityID id.EntityID) ([]*models.Violation, error)
	RequiringAttention(ctx context.Context) ([]*models.Violation, error)
	Overdue(ctx context.Context, olderThanDays int) ([]*models.Violation, error)
}

// Handler wires violation endpoints to the violation service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a violation handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts violation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/violations", func(r chi.Router) {
		r.Post("/", h.HandleRecord)
		r.Get("/", h.HandleList)
		r.Get("/attention", h.HandleRequiringAttention)
		r.Get("/overdue", h.HandleOverdue)
		r.Get("/unpaid-fines", h.HandleUnpaidFines)

		r.Route("/{violationID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Post("/resolve", h.HandleResolve)
			r.Post("/payment", h.HandleRecordPayment)
		})
	})
}

// HandleRecord handles POST /violations requests.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RecordViolationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	violation, err := h.service.Record(ctx, req.ToViolation(), requestcontext.Actor(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "violation recording rejected",
			"request_id", requestID,
			"entity_id", req.EntityID,
			"severity", req.Severity,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "violation recorded",
		"request_id", requestID,
		"violation_id", violation.ID.String(),
		"entity_id", violation.EntityID.String(),
		"severity", violation.Severity.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, violation)
}

// HandleGet handles GET /violations/{violationID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	violationID, ok := h.violationIDFromPath(w, r)
	if !ok {
		return
	}

	violation, err := h.service.Get(r.Context(), violationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, violation)
}

// HandleResolve handles POST /violations/{violationID}/resolve requests.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	violationID, ok := h.violationIDFromPath(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ResolveViolationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	violation, err := h.service.Resolve(ctx, violationID, req.Notes, requestcontext.Actor(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "violation resolution rejected",
			"request_id", requestID,
			"violation_id", violationID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, violation)
}

// HandleRecordPayment handles POST /violations/{violationID}/payment requests.
func (h *Handler) HandleRecordPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	violationID, ok := h.violationIDFromPath(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RecordPaymentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	violation, err := h.service.RecordPayment(ctx, violationID, req.ParsedPaymentDate(), requestcontext.Actor(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "payment recording rejected",
			"request_id", requestID,
			"violation_id", violationID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, violation)
}

// HandleList handles GET /violations requests. Filters: entity_id
// (optionally with active=true), status, severity; the default view is
// every active violation.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		violations []*models.Violation
		err        error
	)
	switch {
	case q.Get("entity_id") != "":
		var entityID id.EntityID
		if entityID, err = id.ParseEntityID(q.Get("entity_id")); err == nil {
			if q.Get("active") == "true" {
				violations, err = h.service.ActiveByEntity(ctx, entityID)
			} else {
				violations, err = h.service.ByEntity(ctx, entityID)
			}
		}
	case q.Get("status") != "":
		var status id.ViolationStatus
		if status, err = id.ParseViolationStatus(q.Get("status")); err == nil {
			violations, err = h.service.ByStatus(ctx, status)
		}
	case q.Get("severity") != "":
		var severity id.Severity
		if severity, err = id.ParseSeverity(q.Get("severity")); err == nil {
			violations, err = h.service.BySeverity(ctx, severity)
		}
	default:
		violations, err = h.service.Active(ctx)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NewViolationListResponse(violations))
}

// HandleUnpaidFines handles GET /violations/unpaid-fines requests.
func (h *Handler) HandleUnpaidFines(w http.ResponseWriter, r *http.Request) {
	entityID, err := id.ParseEntityID(r.URL.Query().Get("entity_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	violations, err := h.service.UnpaidFines(r.Context(), entityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NewViolationListResponse(violations))
}

// HandleRequiringAttention handles GET /violations/attention requests.
func (h *Handler) HandleRequiringAttention(w http.ResponseWriter, r *http.Request) {
	violations, err := h.service.RequiringAttention(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NewViolationListResponse(violations))
}

// HandleOverdue handles GET /violations/overdue requests.
func (h *Handler) HandleOverdue(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("older_than_days")
	if raw == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "older_than_days is required"))
		return
	}
	olderThanDays, err := strconv.Atoi(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "older_than_days must be an integer"))
		return
	}

	violations, err := h.service.Overdue(r.Context(), olderThanDays)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NewViolationListResponse(violations))
}

func (h *Handler) violationIDFromPath(w http.ResponseWriter, r *http.Request) (id.ViolationID, bool) {
	violationID, err := id.ParseViolationID(chi.URLParam(r, "violationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ViolationID{}, false
	}
	return violationID, true
}
