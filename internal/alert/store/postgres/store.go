package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finreg/internal/alert/models"
	id "finreg/pkg/domain"
	"finreg/pkg/platform/sentinel"
	txcontext "finreg/pkg/platform/tx"
)

// Store persists alerts in PostgreSQL.
//
// Sweep deduplication is enforced in the database: partial unique indexes
// cover the unresolved REVIEW_DUE (per entity) and OVERDUE_VIOLATION (per
// violation) scopes, and CreateIfAbsent evaluates its predicate inside a
// single conditional INSERT. A sweep that loses an insert race reports
// the alert as already present rather than failing.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// runner is satisfied by *sql.DB and *sql.Tx.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) runner(ctx context.Context) runner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const alertColumns = `
	id, entity_id, violation_id, alert_type, priority, message, created_at,
	acknowledged, acknowledged_by, acknowledged_at, resolved, resolved_at,
	notes
`

func (s *Store) Create(ctx context.Context, alert *models.AlertNotification) error {
	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.runner(ctx).ExecContext(ctx, query, insertArgs(alert)...)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("alert %s already exists: %w", alert.ID, sentinel.ErrConflict)
	}
	return nil
}

// CreateIfAbsent inserts the alert unless an unresolved alert of the same
// type created at or after since already covers its dedup scope: the
// violation for OVERDUE_VIOLATION, the entity otherwise. Predicate and
// insert run in one statement; the partial unique indexes backstop
// concurrent sweeps, and a race loser reports not-created.
func (s *Store) CreateIfAbsent(ctx context.Context, alert *models.AlertNotification, since time.Time) (bool, error) {
	scope := `entity_id = $2`
	if alert.Type == id.AlertOverdueViolation {
		scope = `violation_id = $3`
	}
	query := `
		INSERT INTO alerts (` + alertColumns + `)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		 WHERE NOT EXISTS (
			SELECT 1 FROM alerts
			 WHERE alert_type = $4 AND ` + scope + `
			   AND NOT resolved AND created_at >= $14
		 )
		ON CONFLICT DO NOTHING
	`
	args := append(insertArgs(alert), since)
	res, err := s.runner(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	return affected == 1, nil
}

func (s *Store) FindByID(ctx context.Context, alertID id.AlertID) (*models.AlertNotification, error) {
	row := s.runner(ctx).QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE id = $1`,
		uuid.UUID(alertID))
	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("alert not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find alert: %w", err)
	}
	return alert, nil
}

// Execute loads the alert under a row lock, runs validate then mutate, and
// writes the result back inside one transaction. A transaction already
// carried in the context is joined. On a validation failure the locked
// state is returned alongside the error.
func (s *Store) Execute(ctx context.Context, alertID id.AlertID, validate func(*models.AlertNotification) error, mutate func(*models.AlertNotification)) (*models.AlertNotification, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return executeIn(ctx, tx, alertID, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin alert mutation: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	alert, err := executeIn(ctx, tx, alertID, validate, mutate)
	if err != nil {
		return alert, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit alert mutation: %w", err)
	}
	return alert, nil
}

func executeIn(ctx context.Context, tx *sql.Tx, alertID id.AlertID, validate func(*models.AlertNotification) error, mutate func(*models.AlertNotification)) (*models.AlertNotification, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE id = $1 FOR UPDATE`,
		uuid.UUID(alertID))
	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("alert not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("lock alert: %w", err)
	}

	if err := validate(alert); err != nil {
		return alert, err
	}

	mutate(alert)
	if err := update(ctx, tx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

func update(ctx context.Context, r runner, alert *models.AlertNotification) error {
	query := `
		UPDATE alerts SET
			entity_id = $2, violation_id = $3, alert_type = $4, priority = $5,
			message = $6, created_at = $7, acknowledged = $8,
			acknowledged_by = $9, acknowledged_at = $10, resolved = $11,
			resolved_at = $12, notes = $13
		WHERE id = $1
	`
	res, err := r.ExecContext(ctx, query, insertArgs(alert)...)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("alert not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

// ===== Queries =====

func (s *Store) ListByEntity(ctx context.Context, entityID id.EntityID) ([]*models.AlertNotification, error) {
	return s.list(ctx, `WHERE entity_id = $1 ORDER BY created_at DESC`, uuid.UUID(entityID))
}

func (s *Store) ListUnresolved(ctx context.Context) ([]*models.AlertNotification, error) {
	return s.list(ctx, `WHERE NOT resolved ORDER BY created_at DESC`)
}

func (s *Store) ListUnresolvedHighPriority(ctx context.Context) ([]*models.AlertNotification, error) {
	return s.list(ctx, `
		WHERE NOT resolved AND priority IN ('HIGH', 'URGENT')
		ORDER BY CASE priority WHEN 'URGENT' THEN 0 ELSE 1 END, created_at DESC`)
}

func (s *Store) CountOpen(ctx context.Context) (int, error) {
	var n int
	err := s.runner(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE NOT acknowledged AND NOT resolved`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open alerts: %w", err)
	}
	return n, nil
}

func (s *Store) list(ctx context.Context, where string, args ...any) ([]*models.AlertNotification, error) {
	rows, err := s.runner(ctx).QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []*models.AlertNotification
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return out, nil
}

func insertArgs(a *models.AlertNotification) []any {
	var violationID any
	if !a.ViolationID.IsNil() {
		violationID = uuid.UUID(a.ViolationID)
	}
	return []any{
		uuid.UUID(a.ID),
		uuid.UUID(a.EntityID),
		violationID,
		string(a.Type),
		string(a.Priority),
		a.Message,
		a.CreatedAt,
		a.Acknowledged,
		a.AcknowledgedBy,
		a.AcknowledgedAt,
		a.Resolved,
		a.ResolvedAt,
		a.Notes,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*models.AlertNotification, error) {
	var (
		a           models.AlertNotification
		aid, eid    uuid.UUID
		violationID sql.NullString
		alertType   string
		priority    string
		ackedAt     sql.NullTime
		resolvedAt  sql.NullTime
	)
	err := row.Scan(
		&aid, &eid, &violationID, &alertType, &priority, &a.Message,
		&a.CreatedAt, &a.Acknowledged, &a.AcknowledgedBy, &ackedAt,
		&a.Resolved, &resolvedAt, &a.Notes,
	)
	if err != nil {
		return nil, err
	}
	a.ID = id.AlertID(aid)
	a.EntityID = id.EntityID(eid)
	a.Type = id.AlertType(alertType)
	a.Priority = id.AlertPriority(priority)
	if violationID.Valid {
		parsed, err := uuid.Parse(violationID.String)
		if err != nil {
			return nil, fmt.Errorf("parse violation id: %w", err)
		}
		a.ViolationID = id.ViolationID(parsed)
	}
	if ackedAt.Valid {
		a.AcknowledgedAt = &ackedAt.Time
	}
	if resolvedAt.Valid {
		a.ResolvedAt = &resolvedAt.Time
	}
	return &a, nil
}
