package service

import (
	"context"

	id "finreg/pkg/domain"
	txcontext "finreg/pkg/platform/tx"
)

// withTxEntity scopes the upcoming unit of work to one entity so the
// in-memory runner can pick a lock shard.
func withTxEntity(ctx context.Context, entityID id.EntityID) context.Context {
	return txcontext.WithScope(ctx, entityID.String())
}
