package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finreg/internal/audit"
	"finreg/internal/entity/models"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
	"finreg/pkg/requestcontext"
)

// Register validates a candidate entity and persists it with registration
// defaults. Nothing is written when validation fails. Returns the stored
// entity with its generated id.
func (s *Service) Register(ctx context.Context, candidate *models.Entity, actor string) (*models.Entity, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entity is required")
	}

	now := requestcontext.Now(ctx)
	if err := candidate.Validate(now, true); err != nil {
		return nil, err
	}

	entity := candidate.Clone()
	if entity.ID.IsNil() {
		entity.ID = id.NewEntityID()
	}
	entity.PrepareForRegistration(now, actor)

	err := s.tx.RunInTx(withTxEntity(ctx, entity.ID), func(txCtx context.Context) error {
		if err := s.entities.Create(txCtx, entity); err != nil {
			return wrapEntityErr(err)
		}
		entry := audit.NewEntry(entity.ID, audit.ActionEntityRegistered,
			fmt.Sprintf("Entity registered: %s (%s)", entity.Name, entity.Type), actor)
		if _, err := s.auditLog.Record(txCtx, entry); err != nil {
			return err
		}
		return s.alerts.Raise(txCtx, entity.ID, id.AlertNewRegistration, id.PriorityMedium,
			fmt.Sprintf("New entity registered: %s", entity.Name))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Registered()
	s.logger.InfoContext(ctx, "entity registered",
		slog.String("entity_id", entity.ID.String()),
		slog.String("type", entity.Type.String()))
	return entity, nil
}

// Get returns an entity by id. Unlike the list queries, Get also returns
// entities that have been deactivated: downstream components still need to
// read them.
func (s *Service) Get(ctx context.Context, entityID id.EntityID) (*models.Entity, error) {
	if err := requireEntityID(entityID); err != nil {
		return nil, err
	}
	entity, err := s.entities.FindByID(ctx, entityID)
	if err != nil {
		return nil, wrapEntityErr(err)
	}
	return entity, nil
}

// Update revalidates and persists an entity's profile fields. Compliance
// status, risk level, the active flag and the review schedule are owned by
// their dedicated operations and preserved here, so a stale DTO cannot
// sidestep the transition rules.
func (s *Service) Update(ctx context.Context, incoming *models.Entity, actor string) (*models.Entity, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if incoming == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entity is required")
	}
	if err := requireEntityID(incoming.ID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if err := incoming.Validate(now, false); err != nil {
		return nil, err
	}

	var updated *models.Entity
	err := s.tx.RunInTx(withTxEntity(ctx, incoming.ID), func(txCtx context.Context) error {
		entity, err := s.entities.Execute(txCtx, incoming.ID,
			func(*models.Entity) error { return nil },
			func(e *models.Entity) {
				applyProfile(e, incoming)
				e.UpdatedAt = now
				e.UpdatedBy = actor
			},
		)
		if err != nil {
			return wrapEntityErr(err)
		}
		entry := audit.NewEntry(entity.ID, audit.ActionEntityUpdated,
			fmt.Sprintf("Entity updated: %s", entity.Name), actor)
		if _, err := s.auditLog.Record(txCtx, entry); err != nil {
			return err
		}
		updated = entity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// applyProfile copies caller-editable fields onto the stored entity.
func applyProfile(dst, src *models.Entity) {
	dst.Name = src.Name
	dst.Type = src.Type
	dst.NMLSID = src.NMLSID
	dst.DBAName = src.DBAName
	dst.PrimaryContact = src.PrimaryContact
	dst.ContactEmail = src.ContactEmail
	dst.ContactPhone = src.ContactPhone
	dst.AddressLine1 = src.AddressLine1
	dst.AddressLine2 = src.AddressLine2
	dst.City = src.City
	dst.State = src.State
	dst.ZipCode = src.ZipCode
	dst.LicenseNumber = src.LicenseNumber
	if src.LicenseExpiry != nil {
		expiry := *src.LicenseExpiry
		dst.LicenseExpiry = &expiry
	}
	dst.TotalAssets = src.TotalAssets
	dst.EmployeeCount = src.EmployeeCount
	dst.Notes = src.Notes
}

// Deactivate soft-deletes an entity. Deactivating an already-inactive
// entity fails with an already-processed error.
func (s *Service) Deactivate(ctx context.Context, entityID id.EntityID, actor string) (*models.Entity, error) {
	return s.toggleActive(ctx, entityID, actor,
		audit.ActionEntityDeactivated, "entity is already inactive",
		func(e *models.Entity) error { return e.CanDeactivate() },
		func(e *models.Entity, now time.Time) { e.ApplyDeactivation(now, actor) },
	)
}

// Reinstate returns a deactivated entity to the active registry.
func (s *Service) Reinstate(ctx context.Context, entityID id.EntityID, actor string) (*models.Entity, error) {
	return s.toggleActive(ctx, entityID, actor,
		audit.ActionEntityReinstated, "entity is already active",
		func(e *models.Entity) error { return e.CanReinstate() },
		func(e *models.Entity, now time.Time) { e.ApplyReinstatement(now, actor) },
	)
}

func (s *Service) toggleActive(
	ctx context.Context,
	entityID id.EntityID,
	actor string,
	action audit.Action,
	alreadyMsg string,
	can func(*models.Entity) error,
	apply func(*models.Entity, time.Time),
) (*models.Entity, error) {
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
			func(e *models.Entity) error {
				if err := can(e); err != nil {
					if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
						return dErrors.New(dErrors.CodeAlreadyProcessed, alreadyMsg)
					}
					return err
				}
				return nil
			},
			func(e *models.Entity) { apply(e, now) },
		)
		if err != nil {
			return wrapEntityErr(err)
		}
		entry := audit.NewEntry(entity.ID, action,
			fmt.Sprintf("Entity %s: %s", actionVerb(action), entity.Name), actor)
		if _, err := s.auditLog.Record(txCtx, entry); err != nil {
			return err
		}
		updated = entity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func actionVerb(action audit.Action) string {
	if action == audit.ActionEntityDeactivated {
		return "deactivated"
	}
	return "reinstated"
}

// ===== Queries =====

func (s *Service) ListActive(ctx context.Context) ([]*models.Entity, error) {
	entities, err := s.entities.ListActive(ctx)
	return entities, wrapEntityErr(err)
}

func (s *Service) ListByType(ctx context.Context, entityType id.EntityType) ([]*models.Entity, error) {
	if !entityType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid entity type")
	}
	entities, err := s.entities.ListByType(ctx, entityType)
	return entities, wrapEntityErr(err)
}

func (s *Service) ListByStatus(ctx context.Context, status id.ComplianceStatus) ([]*models.Entity, error) {
	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid compliance status")
	}
	entities, err := s.entities.ListByStatus(ctx, status)
	return entities, wrapEntityErr(err)
}

func (s *Service) ListByRiskLevel(ctx context.Context, level id.RiskLevel) ([]*models.Entity, error) {
	if !level.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid risk level")
	}
	entities, err := s.entities.ListByRiskLevel(ctx, level)
	return entities, wrapEntityErr(err)
}

func (s *Service) SearchByName(ctx context.Context, query string) ([]*models.Entity, error) {
	entities, err := s.entities.SearchByName(ctx, query)
	return entities, wrapEntityErr(err)
}

func (s *Service) LicenseExpiringWithin(ctx context.Context, days int) ([]*models.Entity, error) {
	if days < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "days must be non-negative")
	}
	entities, err := s.entities.LicenseExpiringWithin(ctx, requestcontext.Now(ctx), days)
	return entities, wrapEntityErr(err)
}

func (s *Service) ReviewOverdue(ctx context.Context) ([]*models.Entity, error) {
	entities, err := s.entities.ReviewOverdue(ctx, requestcontext.Now(ctx))
	return entities, wrapEntityErr(err)
}

func (s *Service) RequiringReview(ctx context.Context, daysAhead int) ([]*models.Entity, error) {
	if daysAhead < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "daysAhead must be non-negative")
	}
	entities, err := s.entities.RequiringReview(ctx, requestcontext.Now(ctx), daysAhead)
	return entities, wrapEntityErr(err)
}
