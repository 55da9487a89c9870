package service

import (
	"context"

	"finreg/internal/violation/models"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
	"finreg/pkg/requestcontext"
)

func (s *Service) Get(ctx context.Context, violationID id.ViolationID) (*models.Violation, error) {
	if err := requireViolationID(violationID); err != nil {
		return nil, err
	}
	violation, err := s.violations.FindByID(ctx, violationID)
	if err != nil {
		return nil, wrapViolationErr(err)
	}
	return violation, nil
}

// ByEntity returns every violation recorded against an entity, settled
// ones included.
func (s *Service) ByEntity(ctx context.Context, entityID id.EntityID) ([]*models.Violation, error) {
	if entityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entity id is required")
	}
	violations, err := s.violations.ListByEntity(ctx, entityID)
	return violations, wrapViolationErr(err)
}

// ActiveByEntity returns an entity's violations that still count against
// it.
func (s *Service) ActiveByEntity(ctx context.Context, entityID id.EntityID) ([]*models.Violation, error) {
	if entityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entity id is required")
	}
	violations, err := s.violations.ListActiveByEntity(ctx, entityID)
	return violations, wrapViolationErr(err)
}

func (s *Service) Active(ctx context.Context) ([]*models.Violation, error) {
	violations, err := s.violations.ListActive(ctx)
	return violations, wrapViolationErr(err)
}

func (s *Service) ByStatus(ctx context.Context, status id.ViolationStatus) ([]*models.Violation, error) {
	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid violation status")
	}
	violations, err := s.violations.ListByStatus(ctx, status)
	return violations, wrapViolationErr(err)
}

func (s *Service) BySeverity(ctx context.Context, severity id.Severity) ([]*models.Violation, error) {
	if !severity.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid severity")
	}
	violations, err := s.violations.ListBySeverity(ctx, severity)
	return violations, wrapViolationErr(err)
}

// UnpaidFines returns an entity's violations with outstanding fines.
func (s *Service) UnpaidFines(ctx context.Context, entityID id.EntityID) ([]*models.Violation, error) {
	if entityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entity id is required")
	}
	violations, err := s.violations.ListUnpaidFines(ctx, entityID)
	return violations, wrapViolationErr(err)
}

// RequiringAttention returns active violations an officer should look at:
// critical severity, overdue fines, overdue follow-ups, or reviews that
// have sat open too long.
func (s *Service) RequiringAttention(ctx context.Context) ([]*models.Violation, error) {
	violations, err := s.violations.RequiringAttention(ctx, requestcontext.Now(ctx))
	return violations, wrapViolationErr(err)
}

// Overdue returns violations still UNDER_REVIEW or CONFIRMED whose
// violation date is more than olderThanDays in the past. Appealed
// violations are excluded: their clock pauses while the appeal runs.
func (s *Service) Overdue(ctx context.Context, olderThanDays int) ([]*models.Violation, error) {
	if olderThanDays < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "olderThanDays must be non-negative")
	}
	violations, err := s.violations.ListOverdue(ctx, requestcontext.Now(ctx), olderThanDays)
	return violations, wrapViolationErr(err)
}
