package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finreg/internal/alert/models"
	"finreg/internal/audit"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
	"finreg/pkg/requestcontext"
)

// Raise creates an event alert for an entity. It joins the caller's unit
// of work when one is active, so the alert and its audit entry commit
// together with the change that triggered them.
func (s *Service) Raise(ctx context.Context, entityID id.EntityID, alertType id.AlertType, priority id.AlertPriority, message string) error {
	return s.raise(ctx, &models.AlertNotification{
		EntityID: entityID,
		Type:     alertType,
		Priority: priority,
		Message:  message,
	})
}

// RaiseForViolation creates an event alert that references a violation.
func (s *Service) RaiseForViolation(ctx context.Context, entityID id.EntityID, violationID id.ViolationID, alertType id.AlertType, priority id.AlertPriority, message string) error {
	if violationID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "violation id is required")
	}
	return s.raise(ctx, &models.AlertNotification{
		EntityID:    entityID,
		ViolationID: violationID,
		Type:        alertType,
		Priority:    priority,
		Message:     message,
	})
}

func (s *Service) raise(ctx context.Context, alert *models.AlertNotification) error {
	if err := alert.Validate(); err != nil {
		return err
	}
	alert.ID = id.NewAlertID()
	alert.CreatedAt = requestcontext.Now(ctx)

	err := s.tx.RunInTx(withTxEntity(ctx, alert.EntityID), func(txCtx context.Context) error {
		if err := s.alerts.Create(txCtx, alert); err != nil {
			return wrapAlertErr(err)
		}
		return s.recordCreated(txCtx, alert)
	})
	if err != nil {
		return err
	}
	s.afterCreate(ctx, alert)
	return nil
}

// ===== Rule sweeps =====

// ReviewDue raises a MEDIUM alert for every active entity whose next
// review date has passed and that has no unresolved REVIEW_DUE alert.
// Returns the number of alerts created; re-running is a no-op until the
// existing alerts are resolved.
func (s *Service) ReviewDue(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	entities, err := s.entities.ReviewOverdue(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStorage, "list entities with overdue reviews")
	}

	created := 0
	for _, entity := range entities {
		alert := &models.AlertNotification{
			ID:       id.NewAlertID(),
			EntityID: entity.ID,
			Type:     id.AlertReviewDue,
			Priority: id.PriorityMedium,
			Message: fmt.Sprintf("Compliance review overdue for %s: due %s",
				entity.Name, entity.NextReviewDate.Format("2006-01-02")),
			CreatedAt: now,
		}
		ok, err := s.sweepInsert(ctx, alert, time.Time{})
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	s.finishSweep(ctx, "review_due", len(entities), created)
	return created, nil
}

// LicenseExpiring raises an alert for every active entity whose license
// expires within daysBefore days, unless an unresolved LICENSE_EXPIRING
// alert was already created within the last daysBefore days. Priority
// escalates as the expiry approaches.
func (s *Service) LicenseExpiring(ctx context.Context, daysBefore int) (int, error) {
	if daysBefore < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "daysBefore must be non-negative")
	}
	now := requestcontext.Now(ctx)
	entities, err := s.entities.LicenseExpiringWithin(ctx, now, daysBefore)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStorage, "list entities with expiring licenses")
	}
	since := now.AddDate(0, 0, -daysBefore)

	created := 0
	for _, entity := range entities {
		days := entity.DaysUntilLicenseExpiry(now)
		alert := &models.AlertNotification{
			ID:       id.NewAlertID(),
			EntityID: entity.ID,
			Type:     id.AlertLicenseExpiring,
			Priority: id.LicenseExpiryPriority(days),
			Message: fmt.Sprintf("License %s for %s expires in %d days",
				entity.LicenseNumber, entity.Name, days),
			CreatedAt: now,
		}
		ok, err := s.sweepInsert(ctx, alert, since)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	s.finishSweep(ctx, "license_expiring", len(entities), created)
	return created, nil
}

// OverdueViolations raises an alert for every violation still under
// review or confirmed whose violation date is more than daysOverdue in
// the past, unless an unresolved OVERDUE_VIOLATION alert already
// references it. Priority follows the violation's severity.
func (s *Service) OverdueViolations(ctx context.Context, daysOverdue int) (int, error) {
	if daysOverdue < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "daysOverdue must be non-negative")
	}
	now := requestcontext.Now(ctx)
	violations, err := s.violations.ListOverdue(ctx, now, daysOverdue)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStorage, "list overdue violations")
	}

	created := 0
	for _, violation := range violations {
		alert := &models.AlertNotification{
			ID:          id.NewAlertID(),
			EntityID:    violation.EntityID,
			ViolationID: violation.ID,
			Type:        id.AlertOverdueViolation,
			Priority:    id.ViolationAlertPriority(violation.Severity),
			Message: fmt.Sprintf("Violation unresolved for %d days: %s",
				violation.DaysSinceViolation(now), violation.Type),
			CreatedAt: now,
		}
		ok, err := s.sweepInsert(ctx, alert, time.Time{})
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	s.finishSweep(ctx, "overdue_violations", len(violations), created)
	return created, nil
}

// sweepInsert attempts one deduplicated insert inside its own unit of
// work. The ALERT_CREATED audit entry is written only when the store
// reports the alert as new.
func (s *Service) sweepInsert(ctx context.Context, alert *models.AlertNotification, since time.Time) (bool, error) {
	var created bool
	err := s.tx.RunInTx(withTxEntity(ctx, alert.EntityID), func(txCtx context.Context) error {
		ok, err := s.alerts.CreateIfAbsent(txCtx, alert, since)
		if err != nil {
			return wrapAlertErr(err)
		}
		created = ok
		if !ok {
			return nil
		}
		return s.recordCreated(txCtx, alert)
	})
	if err != nil {
		return false, err
	}
	if created {
		s.afterCreate(ctx, alert)
	}
	return created, nil
}

func (s *Service) recordCreated(ctx context.Context, alert *models.AlertNotification) error {
	_, err := s.auditLog.Record(ctx, audit.NewEntry(alert.EntityID, audit.ActionAlertCreated,
		fmt.Sprintf("Alert created: %s (%s)", alert.Type, alert.Priority), ""))
	return err
}

func (s *Service) afterCreate(ctx context.Context, alert *models.AlertNotification) {
	if s.notifier != nil {
		s.notifier.Enqueue(*alert)
	}
	s.metrics.Created(alert.Type, alert.Priority)
	s.logger.InfoContext(ctx, "alert created",
		slog.String("alert_id", alert.ID.String()),
		slog.String("entity_id", alert.EntityID.String()),
		slog.String("type", alert.Type.String()),
		slog.String("priority", alert.Priority.String()))
}

func (s *Service) finishSweep(ctx context.Context, rule string, candidates, created int) {
	s.metrics.SweepRan(rule)
	s.logger.InfoContext(ctx, "alert sweep completed",
		slog.String("rule", rule),
		slog.Int("candidates", candidates),
		slog.Int("alerts_created", created))
}
