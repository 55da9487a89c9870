// Package memory provides the in-memory alert store used by unit tests
// and local development.
//
// Error contract (shared with the postgres store):
//   - Create on an existing id fails with sentinel.ErrConflict
//   - lookups of unknown ids fail with sentinel.ErrNotFound
//   - CreateIfAbsent reports "not created" instead of an error when an
//     alert matching the dedup rule already exists
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"finreg/internal/alert/models"
	id "finreg/pkg/domain"
	"finreg/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	alerts map[id.AlertID]*models.AlertNotification
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		alerts: make(map[id.AlertID]*models.AlertNotification),
	}
}

func (s *InMemoryStore) Create(_ context.Context, alert *models.AlertNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alerts[alert.ID]; exists {
		return fmt.Errorf("alert %s already exists: %w", alert.ID, sentinel.ErrConflict)
	}
	s.alerts[alert.ID] = alert.Clone()
	return nil
}

// CreateIfAbsent inserts the alert unless an unresolved alert of the same
// type already covers its dedup scope: the violation for
// OVERDUE_VIOLATION, the entity for every other type. Only alerts created
// at or after since block; a zero since blocks on any unresolved match.
// The check and insert run under one lock, so concurrent sweeps cannot
// double-insert.
func (s *InMemoryStore) CreateIfAbsent(_ context.Context, alert *models.AlertNotification, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.alerts {
		if existing.Type != alert.Type || existing.Resolved {
			continue
		}
		if existing.CreatedAt.Before(since) {
			continue
		}
		if alert.Type == id.AlertOverdueViolation {
			if existing.ViolationID == alert.ViolationID {
				return false, nil
			}
			continue
		}
		if existing.EntityID == alert.EntityID {
			return false, nil
		}
	}
	if _, exists := s.alerts[alert.ID]; exists {
		return false, fmt.Errorf("alert %s already exists: %w", alert.ID, sentinel.ErrConflict)
	}
	s.alerts[alert.ID] = alert.Clone()
	return true, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, alertID id.AlertID) (*models.AlertNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[alertID]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", alertID, sentinel.ErrNotFound)
	}
	return alert.Clone(), nil
}

// Execute runs an atomic validate-then-mutate against one alert. When
// validation rejects, the current state is returned alongside the error.
func (s *InMemoryStore) Execute(_ context.Context, alertID id.AlertID, validate func(*models.AlertNotification) error, mutate func(*models.AlertNotification)) (*models.AlertNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[alertID]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", alertID, sentinel.ErrNotFound)
	}
	if err := validate(alert); err != nil {
		return alert.Clone(), err
	}
	mutate(alert)
	return alert.Clone(), nil
}

// ===== Queries =====

func (s *InMemoryStore) ListByEntity(_ context.Context, entityID id.EntityID) ([]*models.AlertNotification, error) {
	return s.filtered(func(a *models.AlertNotification) bool {
		return a.EntityID == entityID
	}), nil
}

func (s *InMemoryStore) ListUnresolved(_ context.Context) ([]*models.AlertNotification, error) {
	return s.filtered(func(a *models.AlertNotification) bool {
		return !a.Resolved
	}), nil
}

// ListUnresolvedHighPriority returns unresolved HIGH and URGENT alerts,
// URGENT first, newest first within a priority.
func (s *InMemoryStore) ListUnresolvedHighPriority(_ context.Context) ([]*models.AlertNotification, error) {
	alerts := s.filtered(func(a *models.AlertNotification) bool {
		return !a.Resolved && (a.Priority == id.PriorityHigh || a.Priority == id.PriorityUrgent)
	})
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Priority.Rank() > alerts[j].Priority.Rank()
	})
	return alerts, nil
}

// CountOpen counts alerts that are neither acknowledged nor resolved.
func (s *InMemoryStore) CountOpen(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, a := range s.alerts {
		if a.IsOpen() {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) filtered(match func(*models.AlertNotification) bool) []*models.AlertNotification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AlertNotification
	for _, a := range s.alerts {
		if match(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
