// Package memory provides the in-memory violation store used by unit
// tests and local development.
//
// Error contract (shared with the postgres store):
//   - Create on an existing id fails with sentinel.ErrConflict
//   - lookups of unknown ids fail with sentinel.ErrNotFound
//   - Execute returns the current state alongside the validation error
//     when the validate step rejects
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"finreg/internal/violation/models"
	id "finreg/pkg/domain"
	"finreg/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu         sync.RWMutex
	violations map[id.ViolationID]*models.Violation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		violations: make(map[id.ViolationID]*models.Violation),
	}
}

func (s *InMemoryStore) Create(_ context.Context, violation *models.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.violations[violation.ID]; exists {
		return fmt.Errorf("violation %s already exists: %w", violation.ID, sentinel.ErrConflict)
	}
	s.violations[violation.ID] = violation.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, violationID id.ViolationID) (*models.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	violation, ok := s.violations[violationID]
	if !ok {
		return nil, fmt.Errorf("violation %s: %w", violationID, sentinel.ErrNotFound)
	}
	return violation.Clone(), nil
}

// Execute runs an atomic validate-then-mutate against one violation. When
// validation rejects, the current state is returned alongside the error.
func (s *InMemoryStore) Execute(_ context.Context, violationID id.ViolationID, validate func(*models.Violation) error, mutate func(*models.Violation)) (*models.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	violation, ok := s.violations[violationID]
	if !ok {
		return nil, fmt.Errorf("violation %s: %w", violationID, sentinel.ErrNotFound)
	}
	if err := validate(violation); err != nil {
		return violation.Clone(), err
	}
	mutate(violation)
	return violation.Clone(), nil
}

// ===== Queries =====

func (s *InMemoryStore) ListByEntity(_ context.Context, entityID id.EntityID) ([]*models.Violation, error) {
	return s.filtered(func(v *models.Violation) bool {
		return v.EntityID == entityID
	}), nil
}

func (s *InMemoryStore) ListActiveByEntity(_ context.Context, entityID id.EntityID) ([]*models.Violation, error) {
	return s.filtered(func(v *models.Violation) bool {
		return v.EntityID == entityID && v.IsActive()
	}), nil
}

func (s *InMemoryStore) ListActive(_ context.Context) ([]*models.Violation, error) {
	return s.filtered((*models.Violation).IsActive), nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status id.ViolationStatus) ([]*models.Violation, error) {
	return s.filtered(func(v *models.Violation) bool {
		return v.Status == status
	}), nil
}

func (s *InMemoryStore) ListBySeverity(_ context.Context, severity id.Severity) ([]*models.Violation, error) {
	return s.filtered(func(v *models.Violation) bool {
		return v.Severity == severity
	}), nil
}

// ListUnpaidFines returns an entity's violations that still carry an
// unpaid fine, regardless of violation status.
func (s *InMemoryStore) ListUnpaidFines(_ context.Context, entityID id.EntityID) ([]*models.Violation, error) {
	return s.filtered(func(v *models.Violation) bool {
		return v.EntityID == entityID && v.FineAmount.IsPositive() && !v.FinePaid
	}), nil
}

// TotalUnpaidFines sums unpaid fine amounts across all entities.
func (s *InMemoryStore) TotalUnpaidFines(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, v := range s.violations {
		if v.FineAmount.IsPositive() && !v.FinePaid {
			total = total.Add(v.FineAmount)
		}
	}
	return total, nil
}

// RequiringAttention returns active violations flagged by the attention
// rules: critical severity, overdue fine, overdue follow-up, or a stale
// review.
func (s *InMemoryStore) RequiringAttention(_ context.Context, now time.Time) ([]*models.Violation, error) {
	return s.filtered(func(v *models.Violation) bool {
		return v.IsActive() && v.RequiresAttention(now)
	}), nil
}

// ListOverdue returns violations still UNDER_REVIEW or CONFIRMED whose
// violation date lies more than olderThanDays in the past. Feeds the
// overdue-violation alert sweep.
func (s *InMemoryStore) ListOverdue(_ context.Context, now time.Time, olderThanDays int) ([]*models.Violation, error) {
	cutoff := now.AddDate(0, 0, -olderThanDays)
	return s.filtered(func(v *models.Violation) bool {
		if v.Status != id.ViolationUnderReview && v.Status != id.ViolationConfirmed {
			return false
		}
		return v.ViolationDate.Before(cutoff)
	}), nil
}

// CountBySeveritySince counts an entity's violations dated on or after
// since, grouped by severity. Violation status does not matter here; a
// resolved violation still counts against the compliance score until it
// ages out of the window.
func (s *InMemoryStore) CountBySeveritySince(_ context.Context, entityID id.EntityID, since time.Time) (map[id.Severity]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[id.Severity]int)
	for _, v := range s.violations {
		if v.EntityID == entityID && !v.ViolationDate.Before(since) {
			counts[v.Severity]++
		}
	}
	return counts, nil
}

func (s *InMemoryStore) CountActive(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, v := range s.violations {
		if v.IsActive() {
			n++
		}
	}
	return n, nil
}

// CountsBySeverity counts active violations grouped by severity.
func (s *InMemoryStore) CountsBySeverity(_ context.Context) (map[id.Severity]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[id.Severity]int)
	for _, v := range s.violations {
		if v.IsActive() {
			counts[v.Severity]++
		}
	}
	return counts, nil
}

// filtered returns clones of matching violations, newest violation date
// first.
func (s *InMemoryStore) filtered(match func(*models.Violation) bool) []*models.Violation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Violation
	for _, v := range s.violations {
		if match(v) {
			out = append(out, v.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ViolationDate.After(out[j].ViolationDate)
	})
	return out
}
