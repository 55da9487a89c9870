package service

import (
	"context"
	"fmt"
	"time"

	"finreg/internal/audit"
	"finreg/internal/entity/models"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
	"finreg/pkg/requestcontext"
)

// RenewLicense extends an entity's license to a new expiry date. The new
// date must lie in the future; renewal never touches compliance status.
func (s *Service) RenewLicense(ctx context.Context, entityID id.EntityID, newExpiry time.Time, actor string) (*models.Entity, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := requireEntityID(entityID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var updated *models.Entity
	err := s.tx.RunInTx(withTxEntity(ctx, entityID), func(txCtx context.Context) error {
		entity, err := s.entities.Execute(txCtx, entityID,
			func(e *models.Entity) error { return e.CanRenewLicense(newExpiry, now) },
			func(e *models.Entity) { e.ApplyLicenseRenewal(newExpiry, now, actor) },
		)
		if err != nil {
			return wrapEntityErr(err)
		}
		entry := audit.NewEntry(entityID, audit.ActionLicenseRenewed,
			fmt.Sprintf("License %s renewed. New expiry: %s", entity.LicenseNumber, newExpiry.Format("2006-01-02")),
			actor)
		if _, err := s.auditLog.Record(txCtx, entry); err != nil {
			return err
		}
		updated = entity
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LicenseRenewed()
	return updated, nil
}

// SuspendLicense suspends an entity through the status machine, which
// records the audit entry and raises the STATUS_CHANGE alert.
func (s *Service) SuspendLicense(ctx context.Context, entityID id.EntityID, actor, reason string) (*models.Entity, error) {
	return s.UpdateStatus(ctx, entityID, id.StatusSuspended, actor, reason)
}

// ReinstateLicense lifts a suspension. Reinstatement lands in
// PENDING_REVIEW rather than COMPLIANT: the entity still owes a formal
// review before it can be marked compliant again.
func (s *Service) ReinstateLicense(ctx context.Context, entityID id.EntityID, actor string) (*models.Entity, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := requireEntityID(entityID); err != nil {
		return nil, err
	}

	entity, err := s.entities.FindByID(ctx, entityID)
	if err != nil {
		return nil, wrapEntityErr(err)
	}
	if entity.ComplianceStatus != id.StatusSuspended {
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "entity is not suspended")
	}
	return s.UpdateStatus(ctx, entityID, id.StatusPendingReview, actor, "License reinstated")
}
