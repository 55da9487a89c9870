package audit

import (
	"context"
	"log/slog"
	"time"

	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
	"finreg/pkg/requestcontext"
)

// Store persists audit entries. Implementations must be append-only:
// the interface deliberately exposes no update or delete.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByEntity(ctx context.Context, entityID id.EntityID) ([]Entry, error)
	ListByAction(ctx context.Context, action Action) ([]Entry, error)
	ListByActor(ctx context.Context, performedBy string) ([]Entry, error)
	ListByTimeRange(ctx context.Context, from, to time.Time) ([]Entry, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}

// Log records and queries the audit trail. Record participates in the
// caller's transaction when one is carried in the context, so an audit
// entry commits or rolls back together with the change it describes.
type Log struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Log)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		l.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(l *Log) {
		l.metrics = m
	}
}

func NewLog(store Store, opts ...Option) *Log {
	l := &Log{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends an entry to the trail, filling in the ID, timestamp, and
// actor where the caller left them blank.
func (l *Log) Record(ctx context.Context, entry Entry) (Entry, error) {
	if entry.ID.IsNil() {
		entry.ID = id.NewAuditEntryID()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = requestcontext.Now(ctx)
	}
	if entry.PerformedBy == "" {
		entry.PerformedBy = requestcontext.Actor(ctx)
	}

	if err := l.store.Append(ctx, entry); err != nil {
		l.metrics.AppendFailed()
		l.logger.ErrorContext(ctx, "audit append failed",
			slog.String("action", string(entry.Action)),
			slog.String("entity_id", entry.EntityID.String()),
			slog.String("error", err.Error()))
		return Entry{}, dErrors.Wrap(err, dErrors.CodeStorage, "append audit entry")
	}

	l.metrics.Appended(entry.Action)
	return entry, nil
}

// ForEntity returns the trail for one entity, newest first.
func (l *Log) ForEntity(ctx context.Context, entityID id.EntityID) ([]Entry, error) {
	entries, err := l.store.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "list audit entries by entity")
	}
	return entries, nil
}

// ForAction returns every entry recorded under one action, newest first.
func (l *Log) ForAction(ctx context.Context, action Action) ([]Entry, error) {
	entries, err := l.store.ListByAction(ctx, action)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "list audit entries by action")
	}
	return entries, nil
}

// ForActor returns every entry performed by one actor, newest first.
func (l *Log) ForActor(ctx context.Context, performedBy string) ([]Entry, error) {
	entries, err := l.store.ListByActor(ctx, performedBy)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "list audit entries by actor")
	}
	return entries, nil
}

// Between returns entries with from <= OccurredAt < to, newest first.
func (l *Log) Between(ctx context.Context, from, to time.Time) ([]Entry, error) {
	entries, err := l.store.ListByTimeRange(ctx, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "list audit entries by time range")
	}
	return entries, nil
}

// Recent returns the most recent entries across all entities.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	entries, err := l.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "list recent audit entries")
	}
	return entries, nil
}
