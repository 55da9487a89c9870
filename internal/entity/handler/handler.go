package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"finreg/internal/entity/models"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
	"finreg/pkg/platform/httputil"
	"finreg/pkg/requestcontext"
)

// Service defines the interface for entity registry, status, risk and
// license operations.
type Service interface {
	Register(ctx context.Context, candidate *models.Entity, actor string) (*models.Entity, error)
	Get(ctx context.Context, entityID id.EntityID) (*models.Entity, error)
	Update(ctx context.Context, incoming *models.Entity, actor string) (*models.Entity, error)
	Deactivate(ctx context.Context, entityID id.EntityID, actor string) (*models.Entity, error)
	Reinstate(ctx context.Context, entityID id.EntityID, actor string) (*models.Entity, error)

	ListActive(ctx context.Context) ([]*models.Entity, error)
	ListByType(ctx context.Context, entityType id.EntityType) ([]*models.Entity, error)
	ListByStatus(ctx context.Context, status id.ComplianceStatus) ([]*models.Entity, error)
	ListByRiskLevel(ctx context.Context, level id.RiskLevel) ([]*models.Entity, error)
	SearchByName(ctx context.Context, query string) ([]*models.Entity, error)
	LicenseExpiringWithin(ctx context.Context, days int) ([]*models.Entity, error)
	ReviewOverdue(ctx context.Context) ([]*models.Entity, error)
	RequiringReview(ctx context.Context, daysAhead int) ([]*models.Entity, error)

	UpdateStatus(ctx context.Context, entityID id.EntityID, to id.ComplianceStatus, actor, reason string) (*models.Entity, error)
	UpdateRisk(ctx context.Context, entityID id.EntityID, newLevel id.RiskLevel, actor, reason string) (*models.Entity, error)
	ConductReview(ctx context.Context, entityID id.EntityID, newStatus id.ComplianceStatus, newRisk id.RiskLevel, notes, actor string) (*models.Entity, error)
	Score(ctx context.Context, entityID id.EntityID, monthsBack int) (int, error)

	RenewLicense(ctx context.Context, entityID id.EntityID, newExpiry time.Time, actor string) (*models.Entity, error)
	SuspendLicense(ctx context.Context, entityID id.EntityID, actor, reason string) (*models.Entity, error)
	ReinstateLicense(ctx context.Context, entityID id.EntityID, actor string) (*models.Entity, error)
}

// Handler wires entity endpoints to the entity service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an entity handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts entity endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/entities", func(r chi.Router) {
		r.Post("/", h.HandleRegister)
		r.Get("/", h.HandleList)
		r.Get("/license-expiring", h.HandleLicenseExpiring)
		r.Get("/review-overdue", h.HandleReviewOverdue)
		r.Get("/review-due", h.HandleRequiringReview)

		r.Route("/{entityID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Put("/", h.HandleUpdate)
			r.Post("/deactivate", h.HandleDeactivate)
			r.Post("/reinstate", h.HandleReinstate)
			r.Post("/status", h.HandleUpdateStatus)
			r.Post("/risk", h.HandleUpdateRisk)
			r.Post("/review", h.HandleConductReview)
			r.Get("/score", h.HandleScore)
			r.Post("/license/renew", h.HandleRenewLicense)
			r.Post("/license/suspend", h.HandleSuspendLicense)
			r.Post("/license/reinstate", h.HandleReinstateLicense)
		})
	})
}

// HandleRegister handles POST /entities requests.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterEntityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entity, err := h.service.Register(ctx, req.ToEntity(), requestcontext.Actor(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "entity registration rejected",
			"request_id", requestID,
			"name", req.Name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "entity registered",
		"request_id", requestID,
		"entity_id", entity.ID.String(),
		"type", entity.Type.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, entity)
}

// HandleGet handles GET /entities/{entityID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	entityID, ok := h.entityIDFromPath(w, r)
	if !ok {
		return
	}

	entity, err := h.service.Get(r.Context(), entityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entity)
}

// HandleUpdate handles PUT /entities/{entityID} requests. The body is the
// full entity representation; lifecycle-owned fields in it are ignored.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	entityID, ok := h.entityIDFromPath(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateEntityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	incoming := req.ToEntity()
	incoming.ID = entityID

	entity, err := h.service.Update(ctx, incoming, requestcontext.Actor(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "entity update rejected",
			"request_id", requestID,
			"entity_id", entityID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entity)
}

// HandleDeactivate handles POST /entities/{entityID}/deactivate requests.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.toggleActive(w, r, h.service.Deactivate)
}

// HandleReinstate handles POST /entities/{entityID}/reinstate requests.
func (h *Handler) HandleReinstate(w http.ResponseWriter, r *http.Request) {
	h.toggleActive(w, r, h.service.Reinstate)
}

func (h *Handler) toggleActive(w http.ResponseWriter, r *http.Request, op func(context.Context, id.EntityID, string) (*models.Entity, error)) {
	ctx := r.Context()
	entityID, ok := h.entityIDFromPath(w, r)
	if !ok {
		return
	}

	entity, err := op(ctx, entityID, requestcontext.Actor(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entity)
}

// HandleList handles GET /entities requests. Exactly one filter applies
// per request: q, type, status or risk; without a filter the active
// registry is returned.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		entities []*models.Entity
		err      error
	)
	switch {
	case q.Get("q") != "":
		entities, err = h.service.SearchByName(ctx, q.Get("q"))
	case q.Get("type") != "":
		var entityType id.EntityType
		if entityType, err = id.ParseEntityType(q.Get("type")); err == nil {
			entities, err = h.service.ListByType(ctx, entityType)
		}
	case q.Get("status") != "":
		var status id.ComplianceStatus
		if status, err = id.ParseComplianceStatus(q.Get("status")); err == nil {
			entities, err = h.service.ListByStatus(ctx, status)
		}
	case q.Get("risk") != "":
		var level id.RiskLevel
		if level, err = id.ParseRiskLevel(q.Get("risk")); err == nil {
			entities, err = h.service.ListByRiskLevel(ctx, level)
		}
	default:
		entities, err = h.service.ListActive(ctx)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NewEntityListResponse(entities))
}

// HandleLicenseExpiring handles GET /entities/license-expiring requests.
func (h *Handler) HandleLicenseExpiring(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 30)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entities, err := h.service.LicenseExpiringWithin(r.Context(), days)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NewEntityListResponse(entities))
}

// HandleReviewOverdue handles GET /entities/review-overdue requests.
func (h *Handler) HandleReviewOverdue(w http.ResponseWriter, r *http.Request) {
	entities, err := h.service.ReviewOverdue(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NewEntityListResponse(entities))
}

// HandleRequiringReview handles GET /entities/review-due requests.
func (h *Handler) HandleRequiringReview(w http.ResponseWriter, r *http.Request) {
	daysAhead, err := queryInt(r, "days_ahead", 30)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entities, err := h.service.RequiringReview(r.Context(), daysAhead)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NewEntityListResponse(entities))
}

// HandleUpdateStatus handles POST /entities/{entityID}/status requests.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	entityID, ok := h.entityIDFromPath(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entity, err := h.service.UpdateStatus(ctx, entityID, req.ParsedStatus(), requestcontext.Actor(ctx), req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "status update rejected",
			"request_id", requestID,
			"entity_id", entityID.String(),
			"to", req.Status,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entity)
}

// HandleUpdateRisk handles POST /entities/{entityID}/risk requests.
func (h *Handler) HandleUpdateRisk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	entityID, ok := h.entityIDFromPath(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateRiskRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entity, err := h.service.UpdateRisk(ctx, entityID, req.ParsedRiskLevel(), requestcontext.Actor(ctx), req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "risk update rejected",
			"request_id", requestID,
			"entity_id", entityID.String(),
			"to", req.RiskLevel,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entity)
}

// HandleConductReview handles POST /entities/{entityID}/review requests.
func (h *Handler) HandleConductReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	entityID, ok := h.entityIDFromPath(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ConductReviewRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entity, err := h.service.ConductReview(ctx, entityID, req.ParsedStatus(), req.ParsedRiskLevel(), req.Notes, requestcontext.Actor(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "review rejected",
			"request_id", requestID,
			"entity_id", entityID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entity)
}

// HandleScore handles GET /entities/{entityID}/score requests.
func (h *Handler) HandleScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entityID, ok := h.entityIDFromPath(w, r)
	if !ok {
		return
	}
	monthsBack, err := queryInt(r, "months_back", 12)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	score, err := h.service.Score(ctx, entityID, monthsBack)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ScoreResponse{
		EntityID:   entityID,
		Score:      score,
		MonthsBack: monthsBack,
	})
}

// HandleRenewLicense handles POST /entities/{entityID}/license/renew requests.
func (h *Handler) HandleRenewLicense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	entityID, ok := h.entityIDFromPath(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RenewLicenseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entity, err := h.service.RenewLicense(ctx, entityID, req.ParsedExpiry(), requestcontext.Actor(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "license renewal rejected",
			"request_id", requestID,
			"entity_id", entityID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entity)
}

// HandleSuspendLicense handles POST /entities/{entityID}/license/suspend requests.
func (h *Handler) HandleSuspendLicense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	entityID, ok := h.entityIDFromPath(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SuspendLicenseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entity, err := h.service.SuspendLicense(ctx, entityID, requestcontext.Actor(ctx), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entity)
}

// HandleReinstateLicense handles POST /entities/{entityID}/license/reinstate requests.
func (h *Handler) HandleReinstateLicense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entityID, ok := h.entityIDFromPath(w, r)
	if !ok {
		return
	}

	entity, err := h.service.ReinstateLicense(ctx, entityID, requestcontext.Actor(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entity)
}

func (h *Handler) entityIDFromPath(w http.ResponseWriter, r *http.Request) (id.EntityID, bool) {
	entityID, err := id.ParseEntityID(chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.EntityID{}, false
	}
	return entityID, true
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
