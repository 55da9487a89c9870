// Package service implements the entity registry and the risk and status
// engine on top of it: lifecycle operations, the status transition
// machine, risk-driven review scheduling, compliance scoring, and license
// management. Every mutation runs as one unit of work with its audit
// append.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"finreg/internal/audit"
	entitymetrics "finreg/internal/entity/metrics"
	"finreg/internal/entity/models"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
	"finreg/pkg/platform/sentinel"
	txcontext "finreg/pkg/platform/tx"
)

// EntityStore is the persistence contract for entities. Execute carries
// out an atomic validate-then-mutate under a per-entity lock.
type EntityStore interface {
	Create(ctx context.Context, entity *models.Entity) error
	FindByID(ctx context.Context, entityID id.EntityID) (*models.Entity, error)
	Execute(ctx context.Context, entityID id.EntityID, validate func(*models.Entity) error, mutate func(*models.Entity)) (*models.Entity, error)

	ListActive(ctx context.Context) ([]*models.Entity, error)
	ListByType(ctx context.Context, entityType id.EntityType) ([]*models.Entity, error)
	ListByStatus(ctx context.Context, status id.ComplianceStatus) ([]*models.Entity, error)
	ListByRiskLevel(ctx context.Context, level id.RiskLevel) ([]*models.Entity, error)
	SearchByName(ctx context.Context, query string) ([]*models.Entity, error)
	LicenseExpiringWithin(ctx context.Context, now time.Time, days int) ([]*models.Entity, error)
	ReviewOverdue(ctx context.Context, now time.Time) ([]*models.Entity, error)
	RequiringReview(ctx context.Context, now time.Time, daysAhead int) ([]*models.Entity, error)
}

// AuditRecorder appends to the audit trail inside the caller's unit of
// work.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) (audit.Entry, error)
}

// AlertRaiser creates an event-driven alert (plus its ALERT_CREATED audit
// entry) inside the caller's unit of work.
type AlertRaiser interface {
	Raise(ctx context.Context, entityID id.EntityID, alertType id.AlertType, priority id.AlertPriority, message string) error
}

// ViolationCounter supplies violation counts for compliance scoring.
type ViolationCounter interface {
	CountBySeveritySince(ctx context.Context, entityID id.EntityID, since time.Time) (map[id.Severity]int, error)
}

// StoreTx provides the transactional boundary for a unit of work. The
// postgres implementation opens a database transaction and carries it in
// the context; the in-memory one takes a sharded per-entity lock. Nested
// calls join the surrounding unit of work instead of opening a new one.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Service orchestrates entity lifecycle, status, risk and license
// operations.
type Service struct {
	entities   EntityStore
	violations ViolationCounter
	auditLog   AuditRecorder
	alerts     AlertRaiser
	tx         StoreTx
	logger     *slog.Logger
	metrics    *entitymetrics.Metrics
}

type serviceConfig struct {
	tx      StoreTx
	logger  *slog.Logger
	metrics *entitymetrics.Metrics
}

type Option func(*serviceConfig)

func WithStoreTx(tx StoreTx) Option {
	return func(cfg *serviceConfig) {
		cfg.tx = tx
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) {
		cfg.logger = logger
	}
}

func WithMetrics(m *entitymetrics.Metrics) Option {
	return func(cfg *serviceConfig) {
		cfg.metrics = m
	}
}

func New(entities EntityStore, violations ViolationCounter, auditLog AuditRecorder, alerts AlertRaiser, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.tx == nil {
		cfg.tx = txcontext.NewInMemoryRunner()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &Service{
		entities:   entities,
		violations: violations,
		auditLog:   auditLog,
		alerts:     alerts,
		tx:         cfg.tx,
		logger:     cfg.logger,
		metrics:    cfg.metrics,
	}
}

func requireEntityID(entityID id.EntityID) error {
	if entityID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "entity id is required")
	}
	return nil
}

func requireActor(actor string) error {
	if actor == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "actor is required")
	}
	return nil
}

// wrapEntityErr translates store sentinels into coded domain errors.
// Errors already carrying a code pass through untouched.
func wrapEntityErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "entity not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "entity was modified concurrently")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "entity storage timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeStorage, "entity storage failure")
	}
}
