package service

import (
	"context"
	"fmt"
	"log/slog"

	"finreg/internal/alert/models"
	"finreg/internal/audit"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
	"finreg/pkg/requestcontext"
)

// Acknowledge marks the alert as seen by the given actor. Acknowledging
// twice is rejected; acknowledging a resolved alert is permitted, the
// record simply catches up.
func (s *Service) Acknowledge(ctx context.Context, alertID id.AlertID, actor string) (*models.AlertNotification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := requireAlertID(alertID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var updated *models.AlertNotification
	err := s.tx.RunInTx(withTxAlert(ctx, alertID), func(txCtx context.Context) error {
		alert, err := s.alerts.Execute(txCtx, alertID,
			func(a *models.AlertNotification) error { return a.CanAcknowledge() },
			func(a *models.AlertNotification) { a.ApplyAcknowledgement(actor, now) })
		if err != nil {
			return wrapAlertErr(err)
		}
		updated = alert
		_, err = s.auditLog.Record(txCtx, audit.NewEntry(alert.EntityID, audit.ActionAlertAcknowledged,
			fmt.Sprintf("Alert acknowledged: %s", alert.Type), actor))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Acknowledged()
	s.logger.InfoContext(ctx, "alert acknowledged",
		slog.String("alert_id", alertID.String()),
		slog.String("actor", actor))
	return updated, nil
}

// Resolve closes the alert with the given notes. Resolving twice is
// rejected.
func (s *Service) Resolve(ctx context.Context, alertID id.AlertID, notes, actor string) (*models.AlertNotification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := requireAlertID(alertID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var updated *models.AlertNotification
	err := s.tx.RunInTx(withTxAlert(ctx, alertID), func(txCtx context.Context) error {
		alert, err := s.alerts.Execute(txCtx, alertID,
			func(a *models.AlertNotification) error { return a.CanResolve() },
			func(a *models.AlertNotification) { a.ApplyResolution(notes, now) })
		if err != nil {
			return wrapAlertErr(err)
		}
		updated = alert
		_, err = s.auditLog.Record(txCtx, audit.NewEntry(alert.EntityID, audit.ActionAlertResolved,
			fmt.Sprintf("Alert resolved: %s", alert.Type), actor))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Resolved()
	s.logger.InfoContext(ctx, "alert resolved",
		slog.String("alert_id", alertID.String()),
		slog.String("actor", actor))
	return updated, nil
}

// ===== Queries =====

// Get returns one alert by id.
func (s *Service) Get(ctx context.Context, alertID id.AlertID) (*models.AlertNotification, error) {
	if err := requireAlertID(alertID); err != nil {
		return nil, err
	}
	alert, err := s.alerts.FindByID(ctx, alertID)
	return alert, wrapAlertErr(err)
}

// ByEntity returns every alert raised for an entity, newest first.
func (s *Service) ByEntity(ctx context.Context, entityID id.EntityID) ([]*models.AlertNotification, error) {
	if entityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entity id is required")
	}
	alerts, err := s.alerts.ListByEntity(ctx, entityID)
	return alerts, wrapAlertErr(err)
}

// Unresolved returns every alert not yet resolved, newest first.
func (s *Service) Unresolved(ctx context.Context) ([]*models.AlertNotification, error) {
	alerts, err := s.alerts.ListUnresolved(ctx)
	return alerts, wrapAlertErr(err)
}

// HighPriorityOpen returns unresolved HIGH and URGENT alerts, URGENT
// first, newest first within a priority.
func (s *Service) HighPriorityOpen(ctx context.Context) ([]*models.AlertNotification, error) {
	alerts, err := s.alerts.ListUnresolvedHighPriority(ctx)
	return alerts, wrapAlertErr(err)
}

// CountOpen counts alerts that are neither acknowledged nor resolved.
func (s *Service) CountOpen(ctx context.Context) (int, error) {
	n, err := s.alerts.CountOpen(ctx)
	return n, wrapAlertErr(err)
}
