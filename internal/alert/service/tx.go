package service

import (
	"context"

	id "finreg/pkg/domain"
	txcontext "finreg/pkg/platform/tx"
)

// withTxEntity scopes the unit of work to the entity the alert concerns,
// serializing it against other operations on the same entity.
func withTxEntity(ctx context.Context, entityID id.EntityID) context.Context {
	return txcontext.WithScope(ctx, entityID.String())
}

// withTxAlert scopes the unit of work to one alert. Acknowledge and
// resolve touch only the alert row and the audit trail.
func withTxAlert(ctx context.Context, alertID id.AlertID) context.Context {
	return txcontext.WithScope(ctx, alertID.String())
}
