package service

import (
	"context"
	"fmt"
	"log/slog"

	"finreg/internal/audit"
	"finreg/internal/entity/models"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
	"finreg/pkg/requestcontext"
)

// UpdateStatus moves an entity to a new compliance status through the
// transition table. A forbidden transition rejects without a state change;
// a flagged transition proceeds with a warning recorded in the audit
// detail. Entering a deteriorated status raises a STATUS_CHANGE alert.
func (s *Service) UpdateStatus(ctx context.Context, entityID id.EntityID, to id.ComplianceStatus, actor, reason string) (*models.Entity, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := requireEntityID(entityID); err != nil {
		return nil, err
	}
	if !to.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid compliance status")
	}

	now := requestcontext.Now(ctx)
	var (
		updated *models.Entity
		from    id.ComplianceStatus
	)
	err := s.tx.RunInTx(withTxEntity(ctx, entityID), func(txCtx context.Context) error {
		entity, err := s.entities.Execute(txCtx, entityID,
			func(e *models.Entity) error {
				from = e.ComplianceStatus
				return e.CanChangeStatusTo(to)
			},
			func(e *models.Entity) { e.ApplyStatusChange(to, now, actor) },
		)
		if err != nil {
			return wrapEntityErr(err)
		}

		details := fmt.Sprintf("Status changed from %s to %s", from, to)
		if reason != "" {
			details += ". Reason: " + reason
		}
		if warning := from.TransitionWarning(to); warning != "" {
			details += ". " + warning
			s.logger.WarnContext(txCtx, "flagged status transition",
				slog.String("entity_id", entityID.String()),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		}
		entry := audit.NewEntry(entityID, audit.ActionStatusUpdated, details, actor).
			WithChange(from.String(), to.String())
		if _, err := s.auditLog.Record(txCtx, entry); err != nil {
			return err
		}

		if to.RequiresAlert() {
			msg := fmt.Sprintf("Entity %s status changed to %s", entity.Name, to)
			if err := s.alerts.Raise(txCtx, entityID, id.AlertStatusChange, id.PriorityHigh, msg); err != nil {
				return err
			}
		}
		updated = entity
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StatusUpdated(to)
	s.logger.InfoContext(ctx, "entity status updated",
		slog.String("entity_id", entityID.String()),
		slog.String("from", from.String()),
		slog.String("to", to.String()))
	return updated, nil
}

// UpdateRisk reclassifies an entity's risk level. Any target level is
// accepted, the review schedule is recomputed from the interval table, and
// a RISK_ESCALATION alert is raised only when the move is a genuine
// escalation into HIGH or CRITICAL.
func (s *Service) UpdateRisk(ctx context.Context, entityID id.EntityID, newLevel id.RiskLevel, actor, reason string) (*models.Entity, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := requireEntityID(entityID); err != nil {
		return nil, err
	}
	if !newLevel.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid risk level")
	}

	now := requestcontext.Now(ctx)
	var (
		updated *models.Entity
		from    id.RiskLevel
	)
	err := s.tx.RunInTx(withTxEntity(ctx, entityID), func(txCtx context.Context) error {
		entity, err := s.entities.Execute(txCtx, entityID,
			func(e *models.Entity) error {
				from = e.RiskLevel
				return nil
			},
			func(e *models.Entity) { e.ApplyRiskChange(newLevel, now, actor) },
		)
		if err != nil {
			return wrapEntityErr(err)
		}

		details := fmt.Sprintf("Risk level changed from %s to %s", from, newLevel)
		if reason != "" {
			details += ". Reason: " + reason
		}
		entry := audit.NewEntry(entityID, audit.ActionRiskEscalated, details, actor).
			WithChange(from.String(), newLevel.String())
		if _, err := s.auditLog.Record(txCtx, entry); err != nil {
			return err
		}

		if newLevel.EscalationRequiresAlert(from) {
			msg := fmt.Sprintf("Entity %s risk escalated from %s to %s", entity.Name, from, newLevel)
			if err := s.alerts.Raise(txCtx, entityID, id.AlertRiskEscalation, id.PriorityHigh, msg); err != nil {
				return err
			}
		}
		updated = entity
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RiskUpdated(newLevel)
	return updated, nil
}

// ConductReview records a formal compliance review. The review sets status
// and risk directly, bypassing the transition table: a review is the
// authorized path out of SUSPENDED and UNDER_INVESTIGATION. The review
// schedule restarts from today at the new risk level.
func (s *Service) ConductReview(ctx context.Context, entityID id.EntityID, newStatus id.ComplianceStatus, newRisk id.RiskLevel, notes, actor string) (*models.Entity, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := requireEntityID(entityID); err != nil {
		return nil, err
	}
	if !newStatus.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid compliance status")
	}
	if !newRisk.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid risk level")
	}

	now := requestcontext.Now(ctx)
	var (
		updated    *models.Entity
		fromStatus id.ComplianceStatus
		fromRisk   id.RiskLevel
	)
	err := s.tx.RunInTx(withTxEntity(ctx, entityID), func(txCtx context.Context) error {
		entity, err := s.entities.Execute(txCtx, entityID,
			func(e *models.Entity) error {
				fromStatus = e.ComplianceStatus
				fromRisk = e.RiskLevel
				return nil
			},
			func(e *models.Entity) { e.ApplyReview(newStatus, newRisk, notes, actor, now) },
		)
		if err != nil {
			return wrapEntityErr(err)
		}

		details := fmt.Sprintf("Compliance review conducted. Status: %s -> %s. Risk: %s -> %s",
			fromStatus, newStatus, fromRisk, newRisk)
		entry := audit.NewEntry(entityID, audit.ActionReviewConducted, details, actor).
			WithChange(fromStatus.String(), newStatus.String())
		if _, err := s.auditLog.Record(txCtx, entry); err != nil {
			return err
		}
		updated = entity
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ReviewConducted()
	s.logger.InfoContext(ctx, "compliance review conducted",
		slog.String("entity_id", entityID.String()),
		slog.String("status", newStatus.String()),
		slog.String("risk_level", newRisk.String()))
	return updated, nil
}

// Score computes the compliance score over the trailing monthsBack months:
// 100 minus 20 per CRITICAL violation, 10 per HIGH, 5 per any other
// severity, floored at zero. Read-only; nothing is persisted.
func (s *Service) Score(ctx context.Context, entityID id.EntityID, monthsBack int) (int, error) {
	if err := requireEntityID(entityID); err != nil {
		return 0, err
	}
	if monthsBack <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "monthsBack must be positive")
	}
	if _, err := s.entities.FindByID(ctx, entityID); err != nil {
		return 0, wrapEntityErr(err)
	}

	since := requestcontext.Now(ctx).AddDate(0, -monthsBack, 0)
	counts, err := s.violations.CountBySeveritySince(ctx, entityID, since)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStorage, "count violations for score")
	}

	score := 100
	for severity, n := range counts {
		score -= n * severity.ScoreWeight()
	}
	if score < 0 {
		score = 0
	}
	return score, nil
}
