// Package service implements the violation tracker: recording breaches
// with their risk and status escalations, resolution, fine payments, and
// the violation query surface. Escalations run through the entity
// service so the status machine and alert rules stay in one place.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"finreg/internal/audit"
	entitymodels "finreg/internal/entity/models"
	violationmetrics "finreg/internal/violation/metrics"
	"finreg/internal/violation/models"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
	"finreg/pkg/platform/sentinel"
	txcontext "finreg/pkg/platform/tx"
)

// ViolationStore is the persistence contract for violations. Execute
// carries out an atomic validate-then-mutate under a per-violation lock.
type ViolationStore interface {
	Create(ctx context.Context, violation *models.Violation) error
	FindByID(ctx context.Context, violationID id.ViolationID) (*models.Violation, error)
	Execute(ctx context.Context, violationID id.ViolationID, validate func(*models.Violation) error, mutate func(*models.Violation)) (*models.Violation, error)

	ListByEntity(ctx context.Context, entityID id.EntityID) ([]*models.Violation, error)
	ListActiveByEntity(ctx context.Context, entityID id.EntityID) ([]*models.Violation, error)
	ListActive(ctx context.Context) ([]*models.Violation, error)
	ListByStatus(ctx context.Context, status id.ViolationStatus) ([]*models.Violation, error)
	ListBySeverity(ctx context.Context, severity id.Severity) ([]*models.Violation, error)
	ListUnpaidFines(ctx context.Context, entityID id.EntityID) ([]*models.Violation, error)
	RequiringAttention(ctx context.Context, now time.Time) ([]*models.Violation, error)
	ListOverdue(ctx context.Context, now time.Time, olderThanDays int) ([]*models.Violation, error)
}

// EntityService is the slice of the entity service the tracker drives.
// Recording a violation may force a risk escalation or a status downgrade;
// both run through the entity service so its audit entries and alerts
// fire exactly as they would for a direct call.
type EntityService interface {
	Get(ctx context.Context, entityID id.EntityID) (*entitymodels.Entity, error)
	UpdateRisk(ctx context.Context, entityID id.EntityID, newLevel id.RiskLevel, actor, reason string) (*entitymodels.Entity, error)
	UpdateStatus(ctx context.Context, entityID id.EntityID, to id.ComplianceStatus, actor, reason string) (*entitymodels.Entity, error)
}

// AuditRecorder appends to the audit trail inside the caller's unit of
// work.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) (audit.Entry, error)
}

// AlertRaiser creates a violation-linked alert (plus its ALERT_CREATED
// audit entry) inside the caller's unit of work.
type AlertRaiser interface {
	RaiseForViolation(ctx context.Context, entityID id.EntityID, violationID id.ViolationID, alertType id.AlertType, priority id.AlertPriority, message string) error
}

// StoreTx provides the transactional boundary for a unit of work.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Service orchestrates the violation lifecycle.
type Service struct {
	violations ViolationStore
	entities   EntityService
	auditLog   AuditRecorder
	alerts     AlertRaiser
	tx         StoreTx
	logger     *slog.Logger
	metrics    *violationmetrics.Metrics
}

type serviceConfig struct {
	tx      StoreTx
	logger  *slog.Logger
	metrics *violationmetrics.Metrics
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

func WithMetrics(m *violationmetrics.Metrics) Option {
	return func(cfg *serviceConfig) {
		cfg.metrics = m
	}
}

func New(violations ViolationStore, entities EntityService, auditLog AuditRecorder, alerts AlertRaiser, opts ...Option) *Service {
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
		violations: violations,
		entities:   entities,
		auditLog:   auditLog,
		alerts:     alerts,
		tx:         cfg.tx,
		logger:     cfg.logger,
		metrics:    cfg.metrics,
	}
}

func requireViolationID(violationID id.ViolationID) error {
	if violationID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "violation id is required")
	}
	return nil
}

func requireActor(actor string) error {
	if actor == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "actor is required")
	}
	return nil
}

// wrapViolationErr translates store failures into coded domain errors.
// Errors already carrying a code pass through untouched.
func wrapViolationErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "violation not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "violation was modified concurrently")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "violation storage timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeStorage, "violation storage failure")
	}
}
