package tx

import (
	"context"
	"sync"
	"time"

	dErrors "finreg/pkg/domain-errors"
)

// Sharded locking for the in-memory unit-of-work runner. Operations are
// distributed across N shards by a hash of the scope key, so concurrent
// mutations of the same entity serialize while unrelated entities proceed
// in parallel.
const numShards = 128

// defaultTimeout bounds a unit of work; a timeout surfaces as a storage
// error, never a silent retry.
const defaultTimeout = 5 * time.Second

type scopeCtxKey struct{}

var scopeKey = scopeCtxKey{}

// WithScope records which aggregate the upcoming unit of work mutates so
// the in-memory runner can pick a lock shard. Services pass the entity id
// they are about to touch.
func WithScope(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, scopeKey, key)
}

// InMemoryRunner is the in-memory unit-of-work runner used by tests and
// local development. The postgres counterpart opens a database
// transaction instead. A nested RunInTx joins the surrounding unit of
// work rather than deadlocking on its own shard.
type InMemoryRunner struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewInMemoryRunner() *InMemoryRunner {
	return &InMemoryRunner{}
}

func (t *InMemoryRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
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

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring the lock.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(WithLocal(ctx))
}

// selectShard picks a shard based on the scope key in context, defaulting
// to shard 0 for operations not scoped to one aggregate.
func (t *InMemoryRunner) selectShard(ctx context.Context) int {
	if key, ok := ctx.Value(scopeKey).(string); ok && key != "" {
		return int(hashScope(key) % numShards)
	}
	return 0
}

// hashScope uses FNV-1a for good distribution over shards.
func hashScope(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
