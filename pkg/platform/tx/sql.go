package tx

import (
	"context"
	"database/sql"
	"time"

	dErrors "finreg/pkg/domain-errors"
)

// SQLRunner is the postgres unit-of-work runner. It opens a database
// transaction, carries it in the context for the stores to pick up, and
// commits or rolls back the whole unit. A nested RunInTx joins the
// surrounding transaction instead of opening a second one.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (t *SQLRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if Active(ctx) {
		return fn(ctx)
	}

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "commit transaction")
	}
	return nil
}
