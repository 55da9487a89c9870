package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

type localKey struct{}

var localTxKey = localKey{}

// WithLocal marks the context as carrying an in-memory unit of work, the
// non-SQL counterpart of WithTx.
func WithLocal(ctx context.Context) context.Context {
	return context.WithValue(ctx, localTxKey, true)
}

// Active reports whether the context already carries a unit of work,
// either a SQL transaction or an in-memory one. Runners use it to join
// the surrounding unit instead of opening a nested one.
func Active(ctx context.Context) bool {
	if _, ok := From(ctx); ok {
		return true
	}
	active, _ := ctx.Value(localTxKey).(bool)
	return active
}
