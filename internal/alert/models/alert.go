package models

import (
	"fmt"
	"time"

	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
)

// AlertNotification is a single alert raised for an entity, either by an
// event in the lifecycle engine (registration, violation, status change,
// risk escalation) or by one of the scheduled rule sweeps (review due,
// license expiring, overdue violation).
//
// ViolationID is set only on violation-linked alerts; for overdue-violation
// sweeps it is the deduplication key. Alerts are never deleted: they move
// through acknowledge and resolve only.
type AlertNotification struct {
	ID             id.AlertID       `json:"id"`
	EntityID       id.EntityID      `json:"entity_id"`
	ViolationID    id.ViolationID   `json:"violation_id,omitempty"`
	Type           id.AlertType     `json:"type"`
	Priority       id.AlertPriority `json:"priority"`
	Message        string           `json:"message"`
	CreatedAt      time.Time        `json:"created_at"`
	Acknowledged   bool             `json:"acknowledged"`
	AcknowledgedBy string           `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time       `json:"acknowledged_at,omitempty"`
	Resolved       bool             `json:"resolved"`
	ResolvedAt     *time.Time       `json:"resolved_at,omitempty"`
	Notes          string           `json:"notes,omitempty"`
}

// ValidationMessages returns every rule the alert violates, in field order.
func (a *AlertNotification) ValidationMessages() []string {
	var msgs []string
	if a.EntityID.IsNil() {
		msgs = append(msgs, "Entity id is required")
	}
	switch {
	case a.Type == "":
		msgs = append(msgs, "Alert type is required")
	case !a.Type.IsValid():
		msgs = append(msgs, fmt.Sprintf("Invalid alert type: %s", a.Type))
	}
	switch {
	case a.Priority == "":
		msgs = append(msgs, "Alert priority is required")
	case !a.Priority.IsValid():
		msgs = append(msgs, fmt.Sprintf("Invalid alert priority: %s", a.Priority))
	}
	if a.Message == "" {
		msgs = append(msgs, "Alert message is required")
	}
	return msgs
}

// Validate returns a validation error carrying every violated rule.
func (a *AlertNotification) Validate() error {
	if msgs := a.ValidationMessages(); len(msgs) > 0 {
		return dErrors.Validation(msgs)
	}
	return nil
}

// IsOpen reports whether the alert still needs attention: neither
// acknowledged nor resolved.
func (a *AlertNotification) IsOpen() bool {
	return !a.Acknowledged && !a.Resolved
}

// CanAcknowledge reports whether the alert accepts an acknowledgement.
func (a *AlertNotification) CanAcknowledge() error {
	if a.Acknowledged {
		return dErrors.New(dErrors.CodeAlreadyProcessed, "alert is already acknowledged")
	}
	return nil
}

// ApplyAcknowledgement marks the alert acknowledged by the given actor.
func (a *AlertNotification) ApplyAcknowledgement(actor string, now time.Time) {
	a.Acknowledged = true
	a.AcknowledgedBy = actor
	at := now
	a.AcknowledgedAt = &at
}

// CanResolve reports whether the alert accepts a resolution.
func (a *AlertNotification) CanResolve() error {
	if a.Resolved {
		return dErrors.New(dErrors.CodeAlreadyProcessed, "alert is already resolved")
	}
	return nil
}

// ApplyResolution marks the alert resolved with the closing notes.
func (a *AlertNotification) ApplyResolution(notes string, now time.Time) {
	a.Resolved = true
	at := now
	a.ResolvedAt = &at
	a.Notes = notes
}

// Clone returns a deep copy safe to hand across store boundaries.
func (a *AlertNotification) Clone() *AlertNotification {
	c := *a
	if a.AcknowledgedAt != nil {
		v := *a.AcknowledgedAt
		c.AcknowledgedAt = &v
	}
	if a.ResolvedAt != nil {
		v := *a.ResolvedAt
		c.ResolvedAt = &v
	}
	return &c
}
