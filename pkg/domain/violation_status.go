package domain

import dErrors "finreg/pkg/domain-errors"

// ViolationStatus tracks a violation through its review lifecycle.
// A violation is "active" until it is resolved or dismissed; active
// violations count against the entity's compliance score and can trigger
// overdue-violation alerts.
type ViolationStatus string

const (
	ViolationUnderReview ViolationStatus = "UNDER_REVIEW"
	ViolationConfirmed   ViolationStatus = "CONFIRMED"
	ViolationResolved    ViolationStatus = "RESOLVED"
	ViolationAppealed    ViolationStatus = "APPEALED"
	ViolationDismissed   ViolationStatus = "DISMISSED"
)

var validViolationStatuses = map[ViolationStatus]bool{
	ViolationUnderReview: true,
	ViolationConfirmed:   true,
	ViolationResolved:    true,
	ViolationAppealed:    true,
	ViolationDismissed:   true,
}

// ViolationStatuses lists all violation statuses in a stable order.
func ViolationStatuses() []ViolationStatus {
	return []ViolationStatus{
		ViolationUnderReview,
		ViolationConfirmed,
		ViolationResolved,
		ViolationAppealed,
		ViolationDismissed,
	}
}

// ParseViolationStatus constructs a ViolationStatus from external input.
func ParseViolationStatus(s string) (ViolationStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "violation status cannot be empty")
	}
	st := ViolationStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid violation status")
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s ViolationStatus) IsValid() bool {
	return validViolationStatuses[s]
}

// String returns the string representation of the status.
func (s ViolationStatus) String() string {
	return string(s)
}

// IsActive reports whether the violation still counts against the entity:
// anything not RESOLVED and not DISMISSED.
func (s ViolationStatus) IsActive() bool {
	return s != ViolationResolved && s != ViolationDismissed
}
