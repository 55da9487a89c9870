// Package models defines the violation aggregate and its lifecycle rules.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
)

// AttentionAgeDays is how long a violation may sit UNDER_REVIEW before it
// is flagged as requiring attention.
const AttentionAgeDays = 60

// Violation records a regulatory breach by an entity.
//
// Invariants:
//   - ResolutionDate, if set, is never before ViolationDate
//   - FineAmount is non-negative
//   - violations are never deleted; resolution and payment are the only
//     mutations after recording
type Violation struct {
	ID               id.ViolationID     `json:"id"`
	EntityID         id.EntityID        `json:"entity_id"`
	Type             string             `json:"type"`
	Code             string             `json:"code,omitempty"`
	Description      string             `json:"description,omitempty"`
	Severity         id.Severity        `json:"severity"`
	ViolationDate    time.Time          `json:"violation_date"`
	DiscoveryDate    time.Time          `json:"discovery_date"`
	ReportedBy       string             `json:"reported_by,omitempty"`
	FineAmount       decimal.Decimal    `json:"fine_amount"`
	FinePaid         bool               `json:"fine_paid"`
	PaymentDueDate   *time.Time         `json:"payment_due_date,omitempty"`
	PaymentDate      *time.Time         `json:"payment_date,omitempty"`
	Status           id.ViolationStatus `json:"status"`
	ResolutionDate   *time.Time         `json:"resolution_date,omitempty"`
	ResolutionNotes  string             `json:"resolution_notes,omitempty"`
	CorrectiveAction string             `json:"corrective_action,omitempty"`
	FollowUpRequired bool               `json:"follow_up_required"`
	FollowUpDate     *time.Time         `json:"follow_up_date,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	CreatedBy        string             `json:"created_by,omitempty"`
	UpdatedAt        time.Time          `json:"updated_at"`
	UpdatedBy        string             `json:"updated_by,omitempty"`
}

// ValidationMessages checks the recording rules in a fixed order and
// returns one message per violated rule. All rules are checked; the check
// never short-circuits.
func (v *Violation) ValidationMessages() []string {
	var msgs []string
	if v.EntityID.IsNil() {
		msgs = append(msgs, "Entity id is required")
	}
	if v.Type == "" {
		msgs = append(msgs, "Violation type is required")
	}
	if v.Severity == "" {
		msgs = append(msgs, "Severity is required")
	} else if !v.Severity.IsValid() {
		msgs = append(msgs, "Invalid severity: "+v.Severity.String())
	}
	if v.FineAmount.IsNegative() {
		msgs = append(msgs, "Fine amount cannot be negative")
	}
	return msgs
}

// Validate returns a validation error carrying every violated rule.
func (v *Violation) Validate() error {
	if msgs := v.ValidationMessages(); len(msgs) > 0 {
		return dErrors.Validation(msgs)
	}
	return nil
}

// PrepareForRecording applies recording defaults. A new violation always
// opens UNDER_REVIEW with follow-up required; dates default to the
// recording time when the reporter did not supply them.
func (v *Violation) PrepareForRecording(now time.Time, actor string) {
	v.Status = id.ViolationUnderReview
	if v.ViolationDate.IsZero() {
		v.ViolationDate = now
	}
	if v.DiscoveryDate.IsZero() {
		v.DiscoveryDate = now
	}
	if v.ReportedBy == "" {
		v.ReportedBy = actor
	}
	v.FinePaid = false
	v.PaymentDate = nil
	v.ResolutionDate = nil
	v.ResolutionNotes = ""
	v.FollowUpRequired = true
	v.CreatedAt = now
	v.CreatedBy = actor
	v.UpdatedAt = now
	v.UpdatedBy = actor
}

// IsActive reports whether the violation still counts against the entity.
// Resolved and dismissed violations are settled.
func (v *Violation) IsActive() bool {
	return v.Status != id.ViolationResolved && v.Status != id.ViolationDismissed
}

// CanResolve checks that the violation is still open and that the
// resolution date would not precede the violation date.
func (v *Violation) CanResolve(resolutionDate time.Time) error {
	if v.Status == id.ViolationResolved {
		return dErrors.New(dErrors.CodeAlreadyProcessed, "violation is already resolved")
	}
	if resolutionDate.Before(v.ViolationDate) {
		return dErrors.New(dErrors.CodeValidation, "Resolution date cannot be before violation date")
	}
	return nil
}

// ApplyResolution settles the violation and clears the follow-up
// requirement.
func (v *Violation) ApplyResolution(notes string, resolutionDate, now time.Time, actor string) {
	v.Status = id.ViolationResolved
	v.ResolutionDate = &resolutionDate
	v.ResolutionNotes = notes
	v.FollowUpRequired = false
	v.FollowUpDate = nil
	v.UpdatedAt = now
	v.UpdatedBy = actor
}

// CanRecordPayment checks that there is an unpaid fine to record.
func (v *Violation) CanRecordPayment() error {
	if !v.FineAmount.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidInput, "violation carries no fine")
	}
	if v.FinePaid {
		return dErrors.New(dErrors.CodeAlreadyProcessed, "fine is already paid")
	}
	return nil
}

// ApplyPayment marks the fine paid. Payment never changes the violation
// status; resolution is a separate step.
func (v *Violation) ApplyPayment(paymentDate, now time.Time, actor string) {
	v.FinePaid = true
	v.PaymentDate = &paymentDate
	v.UpdatedAt = now
	v.UpdatedBy = actor
}

// FineOverdue reports whether an unpaid fine has passed its due date.
func (v *Violation) FineOverdue(now time.Time) bool {
	if v.FinePaid || !v.FineAmount.IsPositive() || v.PaymentDueDate == nil {
		return false
	}
	return now.After(*v.PaymentDueDate)
}

// FollowUpOverdue reports whether a required follow-up on a still-active
// violation has passed its scheduled date.
func (v *Violation) FollowUpOverdue(now time.Time) bool {
	if !v.IsActive() || !v.FollowUpRequired || v.FollowUpDate == nil {
		return false
	}
	return now.After(*v.FollowUpDate)
}

// DaysSinceViolation returns full days elapsed since the violation date.
func (v *Violation) DaysSinceViolation(now time.Time) int {
	if now.Before(v.ViolationDate) {
		return 0
	}
	return int(now.Sub(v.ViolationDate).Hours() / 24)
}

// DaysUntilPaymentDue returns full days until the payment due date,
// negative once the due date has passed. Zero when no due date is set.
func (v *Violation) DaysUntilPaymentDue(now time.Time) int {
	if v.PaymentDueDate == nil {
		return 0
	}
	hours := v.PaymentDueDate.Sub(now).Hours()
	if hours < 0 {
		return -int(-hours / 24)
	}
	return int(hours / 24)
}

// RequiresAttention reports whether the violation needs an officer's
// eyes: critical severity, an overdue fine, an overdue follow-up, or a
// review that has been sitting open too long.
func (v *Violation) RequiresAttention(now time.Time) bool {
	if v.Severity == id.SeverityCritical {
		return true
	}
	if v.FineOverdue(now) {
		return true
	}
	if v.FollowUpOverdue(now) {
		return true
	}
	return v.Status == id.ViolationUnderReview && v.DaysSinceViolation(now) > AttentionAgeDays
}

// Clone returns a deep copy.
func (v *Violation) Clone() *Violation {
	clone := *v
	if v.PaymentDueDate != nil {
		due := *v.PaymentDueDate
		clone.PaymentDueDate = &due
	}
	if v.PaymentDate != nil {
		paid := *v.PaymentDate
		clone.PaymentDate = &paid
	}
	if v.ResolutionDate != nil {
		resolved := *v.ResolutionDate
		clone.ResolutionDate = &resolved
	}
	if v.FollowUpDate != nil {
		followUp := *v.FollowUpDate
		clone.FollowUpDate = &followUp
	}
	return &clone
}
