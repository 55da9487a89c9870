//go:build integration

package containers

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// schema mirrors the production tables. The audit trail is append-only:
// rewrite rules swallow UPDATE and DELETE so even the owning role cannot
// change history (TRUNCATE stays available for test isolation). The
// partial unique indexes on alerts backstop concurrent sweep inserts.
const schema = `
CREATE TABLE IF NOT EXISTS entities (
	id                UUID PRIMARY KEY,
	name              TEXT NOT NULL,
	type              TEXT NOT NULL,
	nmls_id           TEXT NOT NULL DEFAULT '',
	dba_name          TEXT NOT NULL DEFAULT '',
	primary_contact   TEXT NOT NULL DEFAULT '',
	contact_email     TEXT NOT NULL DEFAULT '',
	contact_phone     TEXT NOT NULL DEFAULT '',
	address_line1     TEXT NOT NULL DEFAULT '',
	address_line2     TEXT NOT NULL DEFAULT '',
	city              TEXT NOT NULL DEFAULT '',
	state             TEXT NOT NULL DEFAULT '',
	zip_code          TEXT NOT NULL DEFAULT '',
	registration_date TIMESTAMPTZ NOT NULL,
	license_number    TEXT NOT NULL,
	license_expiry    TIMESTAMPTZ,
	compliance_status TEXT NOT NULL,
	risk_level        TEXT NOT NULL,
	last_review_date  TIMESTAMPTZ,
	next_review_date  TIMESTAMPTZ NOT NULL,
	total_assets      NUMERIC(18,2) NOT NULL DEFAULT 0,
	employee_count    INTEGER NOT NULL DEFAULT 0,
	active            BOOLEAN NOT NULL DEFAULT TRUE,
	notes             TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL,
	created_by        TEXT NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	updated_by        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS entities_status_idx ON entities (compliance_status) WHERE active;
CREATE INDEX IF NOT EXISTS entities_review_idx ON entities (next_review_date) WHERE active;

CREATE TABLE IF NOT EXISTS violations (
	id                 UUID PRIMARY KEY,
	entity_id          UUID NOT NULL REFERENCES entities (id),
	violation_type     TEXT NOT NULL,
	violation_code     TEXT NOT NULL DEFAULT '',
	description        TEXT NOT NULL DEFAULT '',
	severity           TEXT NOT NULL,
	violation_date     TIMESTAMPTZ NOT NULL,
	discovery_date     TIMESTAMPTZ NOT NULL,
	reported_by        TEXT NOT NULL,
	fine_amount        NUMERIC(18,2) NOT NULL DEFAULT 0,
	fine_paid          BOOLEAN NOT NULL DEFAULT FALSE,
	payment_due_date   TIMESTAMPTZ,
	payment_date       TIMESTAMPTZ,
	status             TEXT NOT NULL,
	resolution_date    TIMESTAMPTZ,
	resolution_notes   TEXT NOT NULL DEFAULT '',
	corrective_action  TEXT NOT NULL DEFAULT '',
	follow_up_required BOOLEAN NOT NULL DEFAULT FALSE,
	follow_up_date     TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL,
	created_by         TEXT NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	updated_by         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS violations_entity_idx ON violations (entity_id);
CREATE INDEX IF NOT EXISTS violations_status_idx ON violations (status);

CREATE TABLE IF NOT EXISTS alerts (
	id              UUID PRIMARY KEY,
	entity_id       UUID NOT NULL REFERENCES entities (id),
	violation_id    UUID REFERENCES violations (id),
	alert_type      TEXT NOT NULL,
	priority        TEXT NOT NULL,
	message         TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	acknowledged    BOOLEAN NOT NULL DEFAULT FALSE,
	acknowledged_by TEXT NOT NULL DEFAULT '',
	acknowledged_at TIMESTAMPTZ,
	resolved        BOOLEAN NOT NULL DEFAULT FALSE,
	resolved_at     TIMESTAMPTZ,
	notes           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS alerts_entity_idx ON alerts (entity_id);
CREATE UNIQUE INDEX IF NOT EXISTS alerts_review_due_open_key
	ON alerts (entity_id) WHERE NOT resolved AND alert_type = 'REVIEW_DUE';
CREATE UNIQUE INDEX IF NOT EXISTS alerts_overdue_violation_open_key
	ON alerts (violation_id) WHERE NOT resolved AND alert_type = 'OVERDUE_VIOLATION';

CREATE TABLE IF NOT EXISTS audit_entries (
	id           UUID PRIMARY KEY,
	entity_id    UUID,
	action       TEXT NOT NULL,
	details      TEXT NOT NULL DEFAULT '',
	old_value    TEXT NOT NULL DEFAULT '',
	new_value    TEXT NOT NULL DEFAULT '',
	occurred_at  TIMESTAMPTZ NOT NULL,
	performed_by TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_entries_entity_idx ON audit_entries (entity_id);
CREATE INDEX IF NOT EXISTS audit_entries_occurred_idx ON audit_entries (occurred_at DESC);
CREATE OR REPLACE RULE audit_entries_no_update AS ON UPDATE TO audit_entries DO INSTEAD NOTHING;
CREATE OR REPLACE RULE audit_entries_no_delete AS ON DELETE TO audit_entries DO INSTEAD NOTHING;
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// schema applied and an open connection pool.
type PostgresContainer struct {
	Container *tcpostgres.PostgresContainer
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new PostgreSQL container and applies the
// schema. Prefer Manager.GetPostgres so suites share one instance.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("finreg"),
		tcpostgres.WithUsername("finreg"),
		tcpostgres.WithPassword("finreg"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres pool: %v", err)
	}
	db.SetMaxOpenConns(10)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// Exec runs one statement against the database.
func (p *PostgresContainer) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.DB.ExecContext(ctx, query, args...)
}

// TruncateTables empties the given tables in a single statement so
// foreign keys between them cannot get in the way. Use between tests to
// ensure isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, "TRUNCATE "+strings.Join(tables, ", ")+" CASCADE")
	return err
}
