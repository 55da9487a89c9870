// Package handler exposes read access to the audit trail. The trail is
// append-only and written exclusively by the lifecycle services; HTTP
// offers queries and nothing else.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"finreg/internal/audit"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
	"finreg/pkg/platform/httputil"
	"finreg/pkg/requestcontext"
)

const dateLayout = "2006-01-02"

// DefaultRecentLimit caps an unfiltered trail read.
const DefaultRecentLimit = 50

// Service is the slice of the audit log the handler reads.
type Service interface {
	ForEntity(ctx context.Context, entityID id.EntityID) ([]audit.Entry, error)
	ForAction(ctx context.Context, action audit.Action) ([]audit.Entry, error)
	ForActor(ctx context.Context, performedBy string) ([]audit.Entry, error)
	Between(ctx context.Context, from, to time.Time) ([]audit.Entry, error)
	Recent(ctx context.Context, limit int) ([]audit.Entry, error)
}

// Handler wires the audit trail queries to the audit log.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates an audit handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the audit endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit", h.HandleQuery)
}

// HandleQuery handles GET /audit requests. Filters: entity_id, action,
// actor, or a from/to window (from inclusive, to exclusive; dates or
// RFC 3339 timestamps). Without a filter the most recent entries are
// returned, capped by limit.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	entries, err := h.dispatch(ctx, q)
	if err != nil {
		h.logger.WarnContext(ctx, "audit query rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NewAuditListResponse(entries))
}

func (h *Handler) dispatch(ctx context.Context, q url.Values) ([]audit.Entry, error) {
	switch {
	case q.Get("entity_id") != "":
		entityID, err := id.ParseEntityID(q.Get("entity_id"))
		if err != nil {
			return nil, err
		}
		return h.service.ForEntity(ctx, entityID)

	case q.Get("action") != "":
		action, err := audit.ParseAction(q.Get("action"))
		if err != nil {
			return nil, err
		}
		return h.service.ForAction(ctx, action)

	case q.Get("actor") != "":
		return h.service.ForActor(ctx, q.Get("actor"))

	case q.Get("from") != "" || q.Get("to") != "":
		if q.Get("from") == "" || q.Get("to") == "" {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "from and to must be provided together")
		}
		from, err := queryTime(q, "from")
		if err != nil {
			return nil, err
		}
		to, err := queryTime(q, "to")
		if err != nil {
			return nil, err
		}
		return h.service.Between(ctx, from, to)

	default:
		limit := DefaultRecentLimit
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				return nil, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
			}
			limit = n
		}
		return h.service.Recent(ctx, limit)
	}
}

// queryTime parses a time filter, accepting RFC 3339 or a plain date.
func queryTime(q url.Values, name string) (time.Time, error) {
	raw := q.Get(name)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	return time.Time{}, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be formatted YYYY-MM-DD or RFC 3339", name)
}
