package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finreg/internal/audit"
	id "finreg/pkg/domain"
	txcontext "finreg/pkg/platform/tx"
)

// Store implements audit.Store on PostgreSQL. The audit_entries table is
// append-only: the schema revokes UPDATE and DELETE, and this store issues
// neither. Appends join the caller's transaction when one is carried in
// the context, so an entry commits together with the change it records.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts an entry. Idempotent on entry ID via ON CONFLICT DO
// NOTHING so replays never duplicate the trail.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	query := `
		INSERT INTO audit_entries (
			id, entity_id, action, details, old_value, new_value,
			occurred_at, performed_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	var entityID *uuid.UUID
	if !entry.EntityID.IsNil() {
		eid := uuid.UUID(entry.EntityID)
		entityID = &eid
	}

	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(entry.ID),
		entityID,
		string(entry.Action),
		entry.Details,
		entry.OldValue,
		entry.NewValue,
		entry.OccurredAt,
		entry.PerformedBy,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

const selectEntry = `
	SELECT id, entity_id, action, details, old_value, new_value,
		   occurred_at, performed_by
	FROM audit_entries
`

func (s *Store) ListByEntity(ctx context.Context, entityID id.EntityID) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		selectEntry+` WHERE entity_id = $1 ORDER BY occurred_at DESC`,
		uuid.UUID(entityID))
	if err != nil {
		return nil, fmt.Errorf("query audit entries by entity: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) ListByAction(ctx context.Context, action audit.Action) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		selectEntry+` WHERE action = $1 ORDER BY occurred_at DESC`,
		string(action))
	if err != nil {
		return nil, fmt.Errorf("query audit entries by action: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) ListByActor(ctx context.Context, performedBy string) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		selectEntry+` WHERE performed_by = $1 ORDER BY occurred_at DESC`,
		performedBy)
	if err != nil {
		return nil, fmt.Errorf("query audit entries by actor: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListByTimeRange returns entries with from <= occurred_at < to.
func (s *Store) ListByTimeRange(ctx context.Context, from, to time.Time) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		selectEntry+` WHERE occurred_at >= $1 AND occurred_at < $2 ORDER BY occurred_at DESC`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("query audit entries by time range: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		selectEntry+` ORDER BY occurred_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("query recent audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var entries []audit.Entry

	for rows.Next() {
		var (
			entry    audit.Entry
			entryID  uuid.UUID
			entityID *uuid.UUID
			action   string
		)

		err := rows.Scan(
			&entryID,
			&entityID,
			&action,
			&entry.Details,
			&entry.OldValue,
			&entry.NewValue,
			&entry.OccurredAt,
			&entry.PerformedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		entry.ID = id.AuditEntryID(entryID)
		entry.Action = audit.Action(action)
		if entityID != nil {
			entry.EntityID = id.EntityID(*entityID)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, nil
}
