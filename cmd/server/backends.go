package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	alertservice "finreg/internal/alert/service"
	alertmem "finreg/internal/alert/store/memory"
	alertpg "finreg/internal/alert/store/postgres"
	"finreg/internal/audit"
	auditmem "finreg/internal/audit/store/memory"
	auditpg "finreg/internal/audit/store/postgres"
	entityservice "finreg/internal/entity/service"
	entitymem "finreg/internal/entity/store/memory"
	entitypg "finreg/internal/entity/store/postgres"
	"finreg/internal/platform/config"
	"finreg/internal/report"
	violationservice "finreg/internal/violation/service"
	violationmem "finreg/internal/violation/store/memory"
	violationpg "finreg/internal/violation/store/postgres"
	txcontext "finreg/pkg/platform/tx"
)

const startupPingTimeout = 5 * time.Second

// storeTx is the unit-of-work runner every service shares so one
// request's writes commit together.
type storeTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// entityBackend is the entity store across its consumers: the entity
// service, the alert sweeps, and the report reads.
type entityBackend interface {
	entityservice.EntityStore
	report.EntitySource
}

// violationBackend is the violation store across its consumers.
type violationBackend interface {
	violationservice.ViolationStore
	entityservice.ViolationCounter
	report.ViolationSource
}

// backends bundles the persistence layer behind one switch: postgres when
// a DSN is configured, the in-memory stores otherwise.
type backends struct {
	entities   entityBackend
	violations violationBackend
	alerts     alertservice.AlertStore
	trail      audit.Store
	runner     storeTx
	db         *sql.DB
}

func openBackends(cfg config.PostgresConfig, log *slog.Logger) (*backends, error) {
	if cfg.DSN == "" {
		log.Info("postgres not configured, running on in-memory stores")
		return &backends{
			entities:   entitymem.NewInMemoryStore(),
			violations: violationmem.NewInMemoryStore(),
			alerts:     alertmem.NewInMemoryStore(),
			trail:      auditmem.NewInMemoryStore(),
			runner:     txcontext.NewInMemoryRunner(),
		}, nil
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), startupPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &backends{
		entities:   entitypg.New(db),
		violations: violationpg.New(db),
		alerts:     alertpg.New(db),
		trail:      auditpg.New(db),
		runner:     txcontext.NewSQLRunner(db),
		db:         db,
	}, nil
}

// Ready pings the database. On the in-memory stores it always succeeds.
func (b *backends) Ready(ctx context.Context) error {
	if b.db == nil {
		return nil
	}
	return b.db.PingContext(ctx)
}

func (b *backends) Close() {
	if b.db != nil {
		_ = b.db.Close()
	}
}
