// Package audit provides the append-only compliance audit trail. Every
// state change in the engine lands here as an immutable entry; entries are
// never updated or deleted, at the application level or below.
package audit

import (
	"time"

	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
)

// Action names the kind of state change an audit entry records.
type Action string

const (
	// Entity lifecycle
	ActionEntityRegistered  Action = "ENTITY_REGISTERED"
	ActionEntityUpdated     Action = "ENTITY_UPDATED"
	ActionEntityDeactivated Action = "ENTITY_DEACTIVATED"
	ActionEntityReinstated  Action = "ENTITY_REINSTATED"

	// Risk and status engine
	ActionStatusUpdated   Action = "STATUS_UPDATED"
	ActionRiskEscalated   Action = "RISK_ESCALATED"
	ActionReviewConducted Action = "REVIEW_CONDUCTED"

	// Violation tracker
	ActionViolationRecorded Action = "VIOLATION_RECORDED"
	ActionViolationResolved Action = "VIOLATION_RESOLVED"
	ActionPaymentRecorded   Action = "PAYMENT_RECORDED"

	// License lifecycle
	ActionLicenseRenewed Action = "LICENSE_RENEWED"

	// Alert engine
	ActionAlertCreated      Action = "ALERT_CREATED"
	ActionAlertAcknowledged Action = "ALERT_ACKNOWLEDGED"
	ActionAlertResolved     Action = "ALERT_RESOLVED"
)

var validActions = map[Action]bool{
	ActionEntityRegistered:  true,
	ActionEntityUpdated:     true,
	ActionEntityDeactivated: true,
	ActionEntityReinstated:  true,
	ActionStatusUpdated:     true,
	ActionRiskEscalated:     true,
	ActionReviewConducted:   true,
	ActionViolationRecorded: true,
	ActionViolationResolved: true,
	ActionPaymentRecorded:   true,
	ActionLicenseRenewed:    true,
	ActionAlertCreated:      true,
	ActionAlertAcknowledged: true,
	ActionAlertResolved:     true,
}

// ParseAction constructs an Action from external input.
func ParseAction(s string) (Action, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "action cannot be empty")
	}
	a := Action(s)
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid action")
	}
	return a, nil
}

// IsValid checks if the action is one of the recorded action kinds.
func (a Action) IsValid() bool {
	return validActions[a]
}

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// Entry is a single immutable record in the audit trail.
//
// OldValue and NewValue hold small before/after snapshots where the action
// has a meaningful one (a status, a risk level, a resolution state); they
// stay empty for actions like ENTITY_UPDATED where the change is too wide
// to summarize in one value.
type Entry struct {
	ID          id.AuditEntryID `json:"id"`
	EntityID    id.EntityID     `json:"entity_id,omitempty"`
	Action      Action          `json:"action"`
	Details     string          `json:"details,omitempty"`
	OldValue    string          `json:"old_value,omitempty"`
	NewValue    string          `json:"new_value,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
	PerformedBy string          `json:"performed_by"`
}

// NewEntry builds an entry for an entity-scoped action. The recorder fills
// in ID and OccurredAt when the entry is appended.
func NewEntry(entityID id.EntityID, action Action, details, performedBy string) Entry {
	return Entry{
		EntityID:    entityID,
		Action:      action,
		Details:     details,
		PerformedBy: performedBy,
	}
}

// WithChange attaches a before/after value pair to the entry.
func (e Entry) WithChange(oldValue, newValue string) Entry {
	e.OldValue = oldValue
	e.NewValue = newValue
	return e
}
