package service

import (
	"context"

	id "finreg/pkg/domain"
	txcontext "finreg/pkg/platform/tx"
)

// withTxEntity scopes the unit of work to the entity whose compliance
// state the recording may escalate.
func withTxEntity(ctx context.Context, entityID id.EntityID) context.Context {
	return txcontext.WithScope(ctx, entityID.String())
}

// withTxViolation scopes the unit of work to one violation. Resolution
// and payment touch only the violation row and the audit trail.
func withTxViolation(ctx context.Context, violationID id.ViolationID) context.Context {
	return txcontext.WithScope(ctx, violationID.String())
}
