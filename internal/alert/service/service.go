// Package service implements the alert engine: event alerts raised by the
// entity and violation services, scheduled rule sweeps (review due,
// license expiring, overdue violations) that are idempotent under re-run,
// and the acknowledge/resolve workflow. Created alerts are audited in the
// same unit of work and handed to the notification publisher after it
// closes.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	alertmetrics "finreg/internal/alert/metrics"
	"finreg/internal/alert/models"
	"finreg/internal/audit"
	entitymodels "finreg/internal/entity/models"
	violationmodels "finreg/internal/violation/models"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
	"finreg/pkg/platform/sentinel"
	txcontext "finreg/pkg/platform/tx"
)

// AlertStore is the persistence contract for alerts. CreateIfAbsent
// enforces the sweep dedup rules atomically; Execute carries out an
// atomic validate-then-mutate under a per-alert lock.
type AlertStore interface {
	Create(ctx context.Context, alert *models.AlertNotification) error
	CreateIfAbsent(ctx context.Context, alert *models.AlertNotification, since time.Time) (bool, error)
	FindByID(ctx context.Context, alertID id.AlertID) (*models.AlertNotification, error)
	Execute(ctx context.Context, alertID id.AlertID, validate func(*models.AlertNotification) error, mutate func(*models.AlertNotification)) (*models.AlertNotification, error)

	ListByEntity(ctx context.Context, entityID id.EntityID) ([]*models.AlertNotification, error)
	ListUnresolved(ctx context.Context) ([]*models.AlertNotification, error)
	ListUnresolvedHighPriority(ctx context.Context) ([]*models.AlertNotification, error)
	CountOpen(ctx context.Context) (int, error)
}

// EntitySource is the slice of the entity store the sweeps read. The
// engine reads stores, not services: the entity service raises its
// alerts through this engine, and store reads keep the construction
// graph acyclic.
type EntitySource interface {
	ReviewOverdue(ctx context.Context, now time.Time) ([]*entitymodels.Entity, error)
	LicenseExpiringWithin(ctx context.Context, now time.Time, days int) ([]*entitymodels.Entity, error)
}

// ViolationSource is the slice of the violation store the overdue sweep
// reads.
type ViolationSource interface {
	ListOverdue(ctx context.Context, now time.Time, olderThanDays int) ([]*violationmodels.Violation, error)
}

// AuditRecorder appends to the audit trail inside the caller's unit of
// work.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) (audit.Entry, error)
}

// Notifier receives created alerts for delivery to downstream consumers.
// Enqueue must not block: delivery is fail-open and never holds up the
// operation that raised the alert.
type Notifier interface {
	Enqueue(alert models.AlertNotification)
}

// StoreTx provides the transactional boundary for a unit of work.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Service is the alert engine.
type Service struct {
	alerts     AlertStore
	entities   EntitySource
	violations ViolationSource
	auditLog   AuditRecorder
	notifier   Notifier
	tx         StoreTx
	logger     *slog.Logger
	metrics    *alertmetrics.Metrics
}

type serviceConfig struct {
	notifier Notifier
	tx       StoreTx
	logger   *slog.Logger
	metrics  *alertmetrics.Metrics
}

type Option func(*serviceConfig)

func WithNotifier(n Notifier) Option {
	return func(cfg *serviceConfig) {
		cfg.notifier = n
	}
}

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

func WithMetrics(m *alertmetrics.Metrics) Option {
	return func(cfg *serviceConfig) {
		cfg.metrics = m
	}
}

func New(alerts AlertStore, entities EntitySource, violations ViolationSource, auditLog AuditRecorder, opts ...Option) *Service {
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
		alerts:     alerts,
		entities:   entities,
		violations: violations,
		auditLog:   auditLog,
		notifier:   cfg.notifier,
		tx:         cfg.tx,
		logger:     cfg.logger,
		metrics:    cfg.metrics,
	}
}

func requireAlertID(alertID id.AlertID) error {
	if alertID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "alert id is required")
	}
	return nil
}

func requireActor(actor string) error {
	if actor == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "actor is required")
	}
	return nil
}

// wrapAlertErr translates store failures into coded domain errors. Errors
// already carrying a code pass through untouched.
func wrapAlertErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "alert not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "alert already exists")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "alert storage timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeStorage, "alert storage failure")
	}
}
