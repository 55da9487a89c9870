package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finreg/internal/entity/models"
	id "finreg/pkg/domain"
	"finreg/pkg/platform/sentinel"
	txcontext "finreg/pkg/platform/tx"
)

// Store persists entities in PostgreSQL. Execute locks the row with
// SELECT ... FOR UPDATE for the validate-then-mutate window; when the
// context carries a transaction the lock is held until that transaction
// commits, so an entity mutation and its audit entry land atomically.
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

const entityColumns = `
	id, name, type, nmls_id, dba_name, primary_contact, contact_email,
	contact_phone, address_line1, address_line2, city, state, zip_code,
	registration_date, license_number, license_expiry, compliance_status,
	risk_level, last_review_date, next_review_date, total_assets,
	employee_count, active, notes, created_at, created_by, updated_at,
	updated_by
`

func (s *Store) Create(ctx context.Context, entity *models.Entity) error {
	query := `
		INSERT INTO entities (` + entityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26,
		        $27, $28)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.runner(ctx).ExecContext(ctx, query, insertArgs(entity)...)
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("entity %s already exists: %w", entity.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, entityID id.EntityID) (*models.Entity, error) {
	row := s.runner(ctx).QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1`,
		uuid.UUID(entityID))
	entity, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entity not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find entity: %w", err)
	}
	return entity, nil
}

func (s *Store) Update(ctx context.Context, entity *models.Entity) error {
	return update(ctx, s.runner(ctx), entity)
}

// Execute loads the entity under a row lock, runs validate then mutate,
// and writes the result back inside one transaction. A transaction already
// carried in the context is joined; otherwise a local one is opened. On a
// validation failure the locked state is returned alongside the error.
func (s *Store) Execute(ctx context.Context, entityID id.EntityID, validate func(*models.Entity) error, mutate func(*models.Entity)) (*models.Entity, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return executeIn(ctx, tx, entityID, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin entity mutation: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	entity, err := executeIn(ctx, tx, entityID, validate, mutate)
	if err != nil {
		return entity, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit entity mutation: %w", err)
	}
	return entity, nil
}

func executeIn(ctx context.Context, tx *sql.Tx, entityID id.EntityID, validate func(*models.Entity) error, mutate func(*models.Entity)) (*models.Entity, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1 FOR UPDATE`,
		uuid.UUID(entityID))
	entity, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entity not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("lock entity: %w", err)
	}

	if err := validate(entity); err != nil {
		return entity, err
	}

	mutate(entity)
	if err := update(ctx, tx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func update(ctx context.Context, r runner, entity *models.Entity) error {
	query := `
		UPDATE entities SET
			name = $2, type = $3, nmls_id = $4, dba_name = $5,
			primary_contact = $6, contact_email = $7, contact_phone = $8,
			address_line1 = $9, address_line2 = $10, city = $11, state = $12,
			zip_code = $13, registration_date = $14, license_number = $15,
			license_expiry = $16, compliance_status = $17, risk_level = $18,
			last_review_date = $19, next_review_date = $20, total_assets = $21,
			employee_count = $22, active = $23, notes = $24, created_at = $25,
			created_by = $26, updated_at = $27, updated_by = $28
		WHERE id = $1
	`
	res, err := r.ExecContext(ctx, query, insertArgs(entity)...)
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("entity not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

// ===== Queries =====

func (s *Store) ListActive(ctx context.Context) ([]*models.Entity, error) {
	return s.list(ctx, `WHERE active ORDER BY name`)
}

func (s *Store) ListByType(ctx context.Context, entityType id.EntityType) ([]*models.Entity, error) {
	return s.list(ctx, `WHERE active AND type = $1 ORDER BY name`, string(entityType))
}

func (s *Store) ListByStatus(ctx context.Context, status id.ComplianceStatus) ([]*models.Entity, error) {
	return s.list(ctx, `WHERE active AND compliance_status = $1 ORDER BY name`, string(status))
}

func (s *Store) ListByRiskLevel(ctx context.Context, level id.RiskLevel) ([]*models.Entity, error) {
	return s.list(ctx, `WHERE active AND risk_level = $1 ORDER BY name`, string(level))
}

func (s *Store) SearchByName(ctx context.Context, query string) ([]*models.Entity, error) {
	return s.list(ctx, `WHERE active AND name ILIKE '%' || $1 || '%' ORDER BY name`, query)
}

func (s *Store) LicenseExpiringWithin(ctx context.Context, now time.Time, days int) ([]*models.Entity, error) {
	return s.list(ctx,
		`WHERE active AND license_expiry IS NOT NULL
		   AND license_expiry >= $1 AND license_expiry <= $2
		 ORDER BY license_expiry`,
		now, now.AddDate(0, 0, days))
}

func (s *Store) ReviewOverdue(ctx context.Context, now time.Time) ([]*models.Entity, error) {
	return s.list(ctx, `WHERE active AND next_review_date < $1 ORDER BY next_review_date`, now)
}

func (s *Store) RequiringReview(ctx context.Context, now time.Time, daysAhead int) ([]*models.Entity, error) {
	return s.list(ctx, `WHERE active AND next_review_date <= $1 ORDER BY next_review_date`,
		now.AddDate(0, 0, daysAhead))
}

func (s *Store) list(ctx context.Context, where string, args ...any) ([]*models.Entity, error) {
	rows, err := s.runner(ctx).QueryContext(ctx, `SELECT `+entityColumns+` FROM entities `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	var entities []*models.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, nil
}

// ===== Aggregates =====

func (s *Store) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.runner(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM entities WHERE active`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count entities: %w", err)
	}
	return count, nil
}

func (s *Store) CountsByStatus(ctx context.Context) (map[id.ComplianceStatus]int, error) {
	counts := make(map[id.ComplianceStatus]int)
	err := s.groupCount(ctx, `SELECT compliance_status, COUNT(*) FROM entities WHERE active GROUP BY compliance_status`,
		func(key string, n int) { counts[id.ComplianceStatus(key)] = n })
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *Store) CountsByRiskLevel(ctx context.Context) (map[id.RiskLevel]int, error) {
	counts := make(map[id.RiskLevel]int)
	err := s.groupCount(ctx, `SELECT risk_level, COUNT(*) FROM entities WHERE active GROUP BY risk_level`,
		func(key string, n int) { counts[id.RiskLevel(key)] = n })
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *Store) CountsByType(ctx context.Context) (map[id.EntityType]int, error) {
	counts := make(map[id.EntityType]int)
	err := s.groupCount(ctx, `SELECT type, COUNT(*) FROM entities WHERE active GROUP BY type`,
		func(key string, n int) { counts[id.EntityType(key)] = n })
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *Store) groupCount(ctx context.Context, query string, add func(key string, n int)) error {
	rows, err := s.runner(ctx).QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("count entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan entity count: %w", err)
		}
		add(key, n)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate entity counts: %w", err)
	}
	return nil
}

// ===== Row mapping =====

func insertArgs(e *models.Entity) []any {
	return []any{
		uuid.UUID(e.ID),
		e.Name,
		string(e.Type),
		e.NMLSID,
		e.DBAName,
		e.PrimaryContact,
		e.ContactEmail,
		e.ContactPhone,
		e.AddressLine1,
		e.AddressLine2,
		e.City,
		e.State,
		e.ZipCode,
		e.RegistrationDate,
		e.LicenseNumber,
		e.LicenseExpiry,
		string(e.ComplianceStatus),
		string(e.RiskLevel),
		e.LastReviewDate,
		e.NextReviewDate,
		e.TotalAssets,
		e.EmployeeCount,
		e.Active,
		e.Notes,
		e.CreatedAt,
		e.CreatedBy,
		e.UpdatedAt,
		e.UpdatedBy,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*models.Entity, error) {
	var (
		e          models.Entity
		entityID   uuid.UUID
		entityType string
		status     string
		risk       string
	)

	err := row.Scan(
		&entityID,
		&e.Name,
		&entityType,
		&e.NMLSID,
		&e.DBAName,
		&e.PrimaryContact,
		&e.ContactEmail,
		&e.ContactPhone,
		&e.AddressLine1,
		&e.AddressLine2,
		&e.City,
		&e.State,
		&e.ZipCode,
		&e.RegistrationDate,
		&e.LicenseNumber,
		&e.LicenseExpiry,
		&status,
		&risk,
		&e.LastReviewDate,
		&e.NextReviewDate,
		&e.TotalAssets,
		&e.EmployeeCount,
		&e.Active,
		&e.Notes,
		&e.CreatedAt,
		&e.CreatedBy,
		&e.UpdatedAt,
		&e.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}

	e.ID = id.EntityID(entityID)
	e.Type = id.EntityType(entityType)
	e.ComplianceStatus = id.ComplianceStatus(status)
	e.RiskLevel = id.RiskLevel(risk)
	return &e, nil
}
