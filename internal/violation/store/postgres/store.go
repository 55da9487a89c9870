package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finreg/internal/violation/models"
	id "finreg/pkg/domain"
	"finreg/pkg/platform/sentinel"
	txcontext "finreg/pkg/platform/tx"
)

// Store persists violations in PostgreSQL. Execute locks the row with
// SELECT ... FOR UPDATE for the validate-then-mutate window; when the
// context carries a transaction the lock is held until that transaction
// commits, so resolution and its audit entry land atomically.
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

const violationColumns = `
	id, entity_id, violation_type, violation_code, description, severity,
	violation_date, discovery_date, reported_by, fine_amount, fine_paid,
	payment_due_date, payment_date, status, resolution_date,
	resolution_notes, corrective_action, follow_up_required, follow_up_date,
	created_at, created_by, updated_at, updated_by
`

// activeStatuses is the SQL predicate for violations that still count
// against an entity.
const activeStatuses = `status NOT IN ('RESOLVED', 'DISMISSED')`

func (s *Store) Create(ctx context.Context, violation *models.Violation) error {
	query := `
		INSERT INTO violations (` + violationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.runner(ctx).ExecContext(ctx, query, insertArgs(violation)...)
	if err != nil {
		return fmt.Errorf("insert violation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert violation: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("violation %s already exists: %w", violation.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, violationID id.ViolationID) (*models.Violation, error) {
	row := s.runner(ctx).QueryRowContext(ctx,
		`SELECT `+violationColumns+` FROM violations WHERE id = $1`,
		uuid.UUID(violationID))
	violation, err := scanViolation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("violation not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find violation: %w", err)
	}
	return violation, nil
}

// Execute loads the violation under a row lock, runs validate then
// mutate, and writes the result back inside one transaction. A
// transaction already carried in the context is joined; otherwise a local
// one is opened. On a validation failure the locked state is returned
// alongside the error.
func (s *Store) Execute(ctx context.Context, violationID id.ViolationID, validate func(*models.Violation) error, mutate func(*models.Violation)) (*models.Violation, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return executeIn(ctx, tx, violationID, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin violation mutation: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	violation, err := executeIn(ctx, tx, violationID, validate, mutate)
	if err != nil {
		return violation, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit violation mutation: %w", err)
	}
	return violation, nil
}

func executeIn(ctx context.Context, tx *sql.Tx, violationID id.ViolationID, validate func(*models.Violation) error, mutate func(*models.Violation)) (*models.Violation, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+violationColumns+` FROM violations WHERE id = $1 FOR UPDATE`,
		uuid.UUID(violationID))
	violation, err := scanViolation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("violation not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("lock violation: %w", err)
	}

	if err := validate(violation); err != nil {
		return violation, err
	}

	mutate(violation)
	if err := update(ctx, tx, violation); err != nil {
		return nil, err
	}
	return violation, nil
}

func update(ctx context.Context, r runner, violation *models.Violation) error {
	query := `
		UPDATE violations SET
			entity_id = $2, violation_type = $3, violation_code = $4,
			description = $5, severity = $6, violation_date = $7,
			discovery_date = $8, reported_by = $9, fine_amount = $10,
			fine_paid = $11, payment_due_date = $12, payment_date = $13,
			status = $14, resolution_date = $15, resolution_notes = $16,
			corrective_action = $17, follow_up_required = $18,
			follow_up_date = $19, created_at = $20, created_by = $21,
			updated_at = $22, updated_by = $23
		WHERE id = $1
	`
	res, err := r.ExecContext(ctx, query, insertArgs(violation)...)
	if err != nil {
		return fmt.Errorf("update violation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update violation: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("violation not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

// ===== Queries =====

func (s *Store) ListByEntity(ctx context.Context, entityID id.EntityID) ([]*models.Violation, error) {
	return s.list(ctx, `WHERE entity_id = $1 ORDER BY violation_date DESC`, uuid.UUID(entityID))
}

func (s *Store) ListActiveByEntity(ctx context.Context, entityID id.EntityID) ([]*models.Violation, error) {
	return s.list(ctx,
		`WHERE entity_id = $1 AND `+activeStatuses+` ORDER BY violation_date DESC`,
		uuid.UUID(entityID))
}

func (s *Store) ListActive(ctx context.Context) ([]*models.Violation, error) {
	return s.list(ctx, `WHERE `+activeStatuses+` ORDER BY violation_date DESC`)
}

func (s *Store) ListByStatus(ctx context.Context, status id.ViolationStatus) ([]*models.Violation, error) {
	return s.list(ctx, `WHERE status = $1 ORDER BY violation_date DESC`, string(status))
}

func (s *Store) ListBySeverity(ctx context.Context, severity id.Severity) ([]*models.Violation, error) {
	return s.list(ctx, `WHERE severity = $1 ORDER BY violation_date DESC`, string(severity))
}

func (s *Store) ListUnpaidFines(ctx context.Context, entityID id.EntityID) ([]*models.Violation, error) {
	return s.list(ctx,
		`WHERE entity_id = $1 AND fine_amount > 0 AND NOT fine_paid
		 ORDER BY violation_date DESC`,
		uuid.UUID(entityID))
}

func (s *Store) TotalUnpaidFines(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.runner(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(fine_amount), 0) FROM violations
		  WHERE fine_amount > 0 AND NOT fine_paid`).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum unpaid fines: %w", err)
	}
	return total, nil
}

func (s *Store) RequiringAttention(ctx context.Context, now time.Time) ([]*models.Violation, error) {
	return s.list(ctx,
		`WHERE `+activeStatuses+` AND (
			severity = 'CRITICAL'
			OR (fine_amount > 0 AND NOT fine_paid
				AND payment_due_date IS NOT NULL AND payment_due_date < $1)
			OR (follow_up_required
				AND follow_up_date IS NOT NULL AND follow_up_date < $1)
			OR (status = 'UNDER_REVIEW' AND violation_date < $2)
		 ) ORDER BY violation_date DESC`,
		now, now.AddDate(0, 0, -models.AttentionAgeDays))
}

func (s *Store) ListOverdue(ctx context.Context, now time.Time, olderThanDays int) ([]*models.Violation, error) {
	return s.list(ctx,
		`WHERE status IN ('UNDER_REVIEW', 'CONFIRMED') AND violation_date < $1
		 ORDER BY violation_date DESC`,
		now.AddDate(0, 0, -olderThanDays))
}

func (s *Store) CountBySeveritySince(ctx context.Context, entityID id.EntityID, since time.Time) (map[id.Severity]int, error) {
	counts := make(map[id.Severity]int)
	err := s.groupCount(ctx,
		`SELECT severity, COUNT(*) FROM violations
		  WHERE entity_id = $1 AND violation_date >= $2
		  GROUP BY severity`,
		func(key string, n int) { counts[id.Severity(key)] = n },
		uuid.UUID(entityID), since)
	if err != nil {
		return nil, fmt.Errorf("count violations by severity: %w", err)
	}
	return counts, nil
}

func (s *Store) CountActive(ctx context.Context) (int, error) {
	var n int
	err := s.runner(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM violations WHERE `+activeStatuses).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active violations: %w", err)
	}
	return n, nil
}

func (s *Store) CountsBySeverity(ctx context.Context) (map[id.Severity]int, error) {
	counts := make(map[id.Severity]int)
	err := s.groupCount(ctx,
		`SELECT severity, COUNT(*) FROM violations
		  WHERE `+activeStatuses+` GROUP BY severity`,
		func(key string, n int) { counts[id.Severity(key)] = n })
	if err != nil {
		return nil, fmt.Errorf("count violations by severity: %w", err)
	}
	return counts, nil
}

func (s *Store) groupCount(ctx context.Context, query string, add func(key string, n int), args ...any) error {
	rows, err := s.runner(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		add(key, n)
	}
	return rows.Err()
}

func (s *Store) list(ctx context.Context, where string, args ...any) ([]*models.Violation, error) {
	rows, err := s.runner(ctx).QueryContext(ctx,
		`SELECT `+violationColumns+` FROM violations `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	defer rows.Close()

	var out []*models.Violation
	for rows.Next() {
		violation, err := scanViolation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		out = append(out, violation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	return out, nil
}

func insertArgs(v *models.Violation) []any {
	return []any{
		uuid.UUID(v.ID),
		uuid.UUID(v.EntityID),
		v.Type,
		v.Code,
		v.Description,
		string(v.Severity),
		v.ViolationDate,
		v.DiscoveryDate,
		v.ReportedBy,
		v.FineAmount,
		v.FinePaid,
		v.PaymentDueDate,
		v.PaymentDate,
		string(v.Status),
		v.ResolutionDate,
		v.ResolutionNotes,
		v.CorrectiveAction,
		v.FollowUpRequired,
		v.FollowUpDate,
		v.CreatedAt,
		v.CreatedBy,
		v.UpdatedAt,
		v.UpdatedBy,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanViolation(row rowScanner) (*models.Violation, error) {
	var (
		v          models.Violation
		vid, eid   uuid.UUID
		severity   string
		status     string
		dueDate    sql.NullTime
		paidDate   sql.NullTime
		resolvedAt sql.NullTime
		followUp   sql.NullTime
	)
	err := row.Scan(
		&vid, &eid, &v.Type, &v.Code, &v.Description, &severity,
		&v.ViolationDate, &v.DiscoveryDate, &v.ReportedBy, &v.FineAmount,
		&v.FinePaid, &dueDate, &paidDate, &status, &resolvedAt,
		&v.ResolutionNotes, &v.CorrectiveAction, &v.FollowUpRequired,
		&followUp, &v.CreatedAt, &v.CreatedBy, &v.UpdatedAt, &v.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	v.ID = id.ViolationID(vid)
	v.EntityID = id.EntityID(eid)
	v.Severity = id.Severity(severity)
	v.Status = id.ViolationStatus(status)
	if dueDate.Valid {
		v.PaymentDueDate = &dueDate.Time
	}
	if paidDate.Valid {
		v.PaymentDate = &paidDate.Time
	}
	if resolvedAt.Valid {
		v.ResolutionDate = &resolvedAt.Time
	}
	if followUp.Valid {
		v.FollowUpDate = &followUp.Time
	}
	return &v, nil
}
