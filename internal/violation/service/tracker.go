package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finreg/internal/audit"
	"finreg/internal/violation/models"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
	"finreg/pkg/requestcontext"
)

// Record validates and persists a violation, then applies the escalation
// rules inside the same unit of work:
//
//   - CRITICAL severity forces the entity's risk level to CRITICAL,
//     unconditionally, through the risk engine
//   - HIGH severity raises a LOW or MEDIUM entity to HIGH; an entity
//     already at HIGH or CRITICAL keeps its level
//   - a COMPLIANT entity drops to NON_COMPLIANT; no other status moves
//
// HIGH and CRITICAL violations additionally raise a VIOLATION alert tied
// to the new violation. The risk and status changes fire their own audit
// entries and alerts through the entity service.
func (s *Service) Record(ctx context.Context, candidate *models.Violation, actor string) (*models.Violation, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "violation is required")
	}
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	violation := candidate.Clone()
	if violation.ID.IsNil() {
		violation.ID = id.NewViolationID()
	}
	violation.PrepareForRecording(now, actor)

	err := s.tx.RunInTx(withTxEntity(ctx, violation.EntityID), func(txCtx context.Context) error {
		entity, err := s.entities.Get(txCtx, violation.EntityID)
		if err != nil {
			return err
		}

		if err := s.violations.Create(txCtx, violation); err != nil {
			return wrapViolationErr(err)
		}

		reason := fmt.Sprintf("%s violation recorded: %s", violation.Severity, violation.Type)
		switch {
		case violation.Severity == id.SeverityCritical:
			if _, err := s.entities.UpdateRisk(txCtx, entity.ID, id.RiskCritical, actor, reason); err != nil {
				return err
			}
		case violation.Severity == id.SeverityHigh &&
			(entity.RiskLevel == id.RiskLow || entity.RiskLevel == id.RiskMedium):
			if _, err := s.entities.UpdateRisk(txCtx, entity.ID, id.RiskHigh, actor, reason); err != nil {
				return err
			}
		}

		if entity.ComplianceStatus == id.StatusCompliant {
			if _, err := s.entities.UpdateStatus(txCtx, entity.ID, id.StatusNonCompliant, actor, reason); err != nil {
				return err
			}
		}

		entry := audit.NewEntry(violation.EntityID, audit.ActionViolationRecorded,
			fmt.Sprintf("Violation recorded: %s (%s)", violation.Type, violation.Severity), actor)
		if _, err := s.auditLog.Record(txCtx, entry); err != nil {
			return err
		}

		if violation.Severity == id.SeverityHigh || violation.Severity == id.SeverityCritical {
			msg := fmt.Sprintf("%s violation recorded for %s: %s",
				violation.Severity, entity.Name, violation.Type)
			if err := s.alerts.RaiseForViolation(txCtx, violation.EntityID, violation.ID,
				id.AlertViolation, id.ViolationAlertPriority(violation.Severity), msg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Recorded(violation.Severity)
	s.logger.InfoContext(ctx, "violation recorded",
		slog.String("violation_id", violation.ID.String()),
		slog.String("entity_id", violation.EntityID.String()),
		slog.String("severity", violation.Severity.String()))
	return violation, nil
}

// Resolve settles a violation. The resolution date is the request time
// and must not precede the violation date; resolving clears any pending
// follow-up.
func (s *Service) Resolve(ctx context.Context, violationID id.ViolationID, notes, actor string) (*models.Violation, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := requireViolationID(violationID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var resolved *models.Violation
	err := s.tx.RunInTx(withTxViolation(ctx, violationID), func(txCtx context.Context) error {
		violation, err := s.violations.Execute(txCtx, violationID,
			func(v *models.Violation) error { return v.CanResolve(now) },
			func(v *models.Violation) { v.ApplyResolution(notes, now, now, actor) },
		)
		if err != nil {
			return wrapViolationErr(err)
		}
		entry := audit.NewEntry(violation.EntityID, audit.ActionViolationResolved,
			fmt.Sprintf("Violation resolved: %s", violation.Type), actor)
		if _, err := s.auditLog.Record(txCtx, entry); err != nil {
			return err
		}
		resolved = violation
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Resolved()
	s.logger.InfoContext(ctx, "violation resolved",
		slog.String("violation_id", violationID.String()))
	return resolved, nil
}

// RecordPayment marks a violation's fine as paid. Payment never changes
// the violation status; a paid fine still needs a resolution.
func (s *Service) RecordPayment(ctx context.Context, violationID id.ViolationID, paymentDate time.Time, actor string) (*models.Violation, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := requireViolationID(violationID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if paymentDate.IsZero() {
		paymentDate = now
	}

	var paid *models.Violation
	err := s.tx.RunInTx(withTxViolation(ctx, violationID), func(txCtx context.Context) error {
		violation, err := s.violations.Execute(txCtx, violationID,
			func(v *models.Violation) error { return v.CanRecordPayment() },
			func(v *models.Violation) { v.ApplyPayment(paymentDate, now, actor) },
		)
		if err != nil {
			return wrapViolationErr(err)
		}
		entry := audit.NewEntry(violation.EntityID, audit.ActionPaymentRecorded,
			fmt.Sprintf("Fine payment recorded: %s for %s",
				violation.FineAmount.StringFixed(2), violation.Type), actor)
		if _, err := s.auditLog.Record(txCtx, entry); err != nil {
			return err
		}
		paid = violation
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentRecorded()
	return paid, nil
}
