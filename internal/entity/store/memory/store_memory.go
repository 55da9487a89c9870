package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"finreg/internal/entity/models"
	id "finreg/pkg/domain"
	"finreg/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Return ErrConflict when a create collides with an existing ID
// - Return nil for successful operations
//
// Query methods exclude inactive entities; FindByID is the one exception
// so downstream components can read entities after deactivation.

// InMemoryStore keeps entities in process memory for tests and local
// development. Execute serializes mutation per entity under the store
// lock, mirroring the row lock the postgres store takes.
type InMemoryStore struct {
	mu       sync.RWMutex
	entities map[id.EntityID]*models.Entity
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entities: make(map[id.EntityID]*models.Entity)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = make(map[id.EntityID]*models.Entity)
}

func (s *InMemoryStore) Create(_ context.Context, entity *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entities[entity.ID]; exists {
		return fmt.Errorf("entity %s already exists: %w", entity.ID, sentinel.ErrConflict)
	}
	s.entities[entity.ID] = entity.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, entityID id.EntityID) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entity, ok := s.entities[entityID]
	if !ok {
		return nil, fmt.Errorf("entity not found: %w", sentinel.ErrNotFound)
	}
	return entity.Clone(), nil
}

func (s *InMemoryStore) Update(_ context.Context, entity *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[entity.ID]; !ok {
		return fmt.Errorf("entity not found: %w", sentinel.ErrNotFound)
	}
	s.entities[entity.ID] = entity.Clone()
	return nil
}

// Execute runs validate then mutate on the entity while holding the store
// lock, so concurrent mutations of the same entity serialize. On a
// validation failure the current state is returned alongside the error so
// callers can inspect what they lost to.
func (s *InMemoryStore) Execute(_ context.Context, entityID id.EntityID, validate func(*models.Entity) error, mutate func(*models.Entity)) (*models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[entityID]
	if !ok {
		return nil, fmt.Errorf("entity not found: %w", sentinel.ErrNotFound)
	}

	if err := validate(entity); err != nil {
		return entity.Clone(), err
	}

	mutate(entity)
	return entity.Clone(), nil
}

// ===== Queries =====

func (s *InMemoryStore) ListActive(_ context.Context) ([]*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active(func(*models.Entity) bool { return true }), nil
}

func (s *InMemoryStore) ListByType(_ context.Context, entityType id.EntityType) ([]*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active(func(e *models.Entity) bool { return e.Type == entityType }), nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status id.ComplianceStatus) ([]*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active(func(e *models.Entity) bool { return e.ComplianceStatus == status }), nil
}

func (s *InMemoryStore) ListByRiskLevel(_ context.Context, level id.RiskLevel) ([]*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active(func(e *models.Entity) bool { return e.RiskLevel == level }), nil
}

// SearchByName matches active entities whose name contains the query,
// case-insensitively.
func (s *InMemoryStore) SearchByName(_ context.Context, query string) ([]*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(query)
	return s.active(func(e *models.Entity) bool {
		return strings.Contains(strings.ToLower(e.Name), q)
	}), nil
}

func (s *InMemoryStore) LicenseExpiringWithin(_ context.Context, now time.Time, days int) ([]*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active(func(e *models.Entity) bool { return e.LicenseExpiresWithin(now, days) }), nil
}

func (s *InMemoryStore) ReviewOverdue(_ context.Context, now time.Time) ([]*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active(func(e *models.Entity) bool { return e.ReviewOverdue(now) }), nil
}

// RequiringReview returns active entities whose next review falls on or
// before now+daysAhead, overdue ones included.
func (s *InMemoryStore) RequiringReview(_ context.Context, now time.Time, daysAhead int) ([]*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := now.AddDate(0, 0, daysAhead)
	return s.active(func(e *models.Entity) bool {
		return !e.NextReviewDate.IsZero() && !e.NextReviewDate.After(cutoff)
	}), nil
}

// ===== Aggregates =====

func (s *InMemoryStore) CountActive(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active(func(*models.Entity) bool { return true })), nil
}

func (s *InMemoryStore) CountsByStatus(_ context.Context) (map[id.ComplianceStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[id.ComplianceStatus]int)
	for _, e := range s.entities {
		if e.Active {
			counts[e.ComplianceStatus]++
		}
	}
	return counts, nil
}

func (s *InMemoryStore) CountsByRiskLevel(_ context.Context) (map[id.RiskLevel]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[id.RiskLevel]int)
	for _, e := range s.entities {
		if e.Active {
			counts[e.RiskLevel]++
		}
	}
	return counts, nil
}

func (s *InMemoryStore) CountsByType(_ context.Context) (map[id.EntityType]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[id.EntityType]int)
	for _, e := range s.entities {
		if e.Active {
			counts[e.Type]++
		}
	}
	return counts, nil
}

// active returns clones of matching active entities ordered by name.
// Callers hold the lock.
func (s *InMemoryStore) active(match func(*models.Entity) bool) []*models.Entity {
	var out []*models.Entity
	for _, e := range s.entities {
		if e.Active && match(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
