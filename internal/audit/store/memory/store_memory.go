package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"finreg/internal/audit"
	id "finreg/pkg/domain"
	"finreg/pkg/platform/sentinel"
)

// InMemoryStore holds the audit trail in process memory. Used by unit
// tests and local development. Appends are idempotent on entry ID and the
// trail is append-only: Update and Delete always fail.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
	byID    map[id.AuditEntryID]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[id.AuditEntryID]struct{})}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byID = make(map[id.AuditEntryID]struct{})
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[entry.ID]; exists {
		// Idempotent: a replayed append of the same entry is a no-op.
		return nil
	}
	s.byID[entry.ID] = struct{}{}
	s.entries = append(s.entries, entry)
	return nil
}

// Update always fails: the audit trail is immutable. The method exists so
// the storage layer states the guarantee instead of leaving it implicit.
func (s *InMemoryStore) Update(_ context.Context, _ audit.Entry) error {
	return sentinel.ErrImmutable
}

// Delete always fails: the audit trail is immutable.
func (s *InMemoryStore) Delete(_ context.Context, _ id.AuditEntryID) error {
	return sentinel.ErrImmutable
}

func (s *InMemoryStore) ListByEntity(_ context.Context, entityID id.EntityID) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filtered(func(e audit.Entry) bool { return e.EntityID == entityID }), nil
}

func (s *InMemoryStore) ListByAction(_ context.Context, action audit.Action) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filtered(func(e audit.Entry) bool { return e.Action == action }), nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, performedBy string) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filtered(func(e audit.Entry) bool { return e.PerformedBy == performedBy }), nil
}

// ListByTimeRange returns entries with from <= OccurredAt < to.
func (s *InMemoryStore) ListByTimeRange(_ context.Context, from, to time.Time) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filtered(func(e audit.Entry) bool {
		return !e.OccurredAt.Before(from) && e.OccurredAt.Before(to)
	}), nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.filtered(func(audit.Entry) bool { return true })
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// filtered returns matching entries newest first. Callers hold the lock.
func (s *InMemoryStore) filtered(match func(audit.Entry) bool) []audit.Entry {
	var out []audit.Entry
	for _, e := range s.entries {
		if match(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out
}
