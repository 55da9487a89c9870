package domain

import dErrors "finreg/pkg/domain-errors"

// ComplianceStatus is an entity's current regulatory standing.
//
// The transition rule is intentionally permissive: every pair of states is
// allowed except the ones listed in forbiddenStatusTransitions. A formal
// compliance review (ConductReview) bypasses the table entirely, since a
// review is the authorized path out of SUSPENDED and UNDER_INVESTIGATION.
type ComplianceStatus string

const (
	StatusCompliant          ComplianceStatus = "COMPLIANT"
	StatusNonCompliant       ComplianceStatus = "NON_COMPLIANT"
	StatusPendingReview      ComplianceStatus = "PENDING_REVIEW"
	StatusUnderInvestigation ComplianceStatus = "UNDER_INVESTIGATION"
	StatusProbation          ComplianceStatus = "PROBATION"
	StatusSuspended          ComplianceStatus = "SUSPENDED"
)

var validComplianceStatuses = map[ComplianceStatus]bool{
	StatusCompliant:          true,
	StatusNonCompliant:       true,
	StatusPendingReview:      true,
	StatusUnderInvestigation: true,
	StatusProbation:          true,
	StatusSuspended:          true,
}

// ComplianceStatuses lists all statuses in a stable order.
func ComplianceStatuses() []ComplianceStatus {
	return []ComplianceStatus{
		StatusCompliant,
		StatusNonCompliant,
		StatusPendingReview,
		StatusUnderInvestigation,
		StatusProbation,
		StatusSuspended,
	}
}

type statusPair struct {
	from ComplianceStatus
	to   ComplianceStatus
}

// forbiddenStatusTransitions is the single source of truth for blocked
// transitions. A suspended entity must pass through PENDING_REVIEW before
// it can be marked compliant again.
var forbiddenStatusTransitions = map[statusPair]string{
	{StatusSuspended, StatusCompliant}: "Cannot transition from SUSPENDED to COMPLIANT directly. Must go through PENDING_REVIEW first.",
}

// flaggedStatusTransitions are permitted but recorded with a warning in the
// audit detail so a secondary review can pick them up.
var flaggedStatusTransitions = map[statusPair]string{
	{StatusUnderInvestigation, StatusCompliant}: "Transition from UNDER_INVESTIGATION to COMPLIANT flagged for secondary review.",
}

// ParseComplianceStatus constructs a ComplianceStatus from external input.
func ParseComplianceStatus(s string) (ComplianceStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "compliance status cannot be empty")
	}
	st := ComplianceStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid compliance status")
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s ComplianceStatus) IsValid() bool {
	return validComplianceStatuses[s]
}

// String returns the string representation of the status.
func (s ComplianceStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether a direct transition to the target status
// is permitted. When it is not, the second return value carries the
// human-readable reason.
func (s ComplianceStatus) CanTransitionTo(to ComplianceStatus) (bool, string) {
	if reason, forbidden := forbiddenStatusTransitions[statusPair{s, to}]; forbidden {
		return false, reason
	}
	return true, ""
}

// TransitionWarning returns the secondary-review warning for a permitted
// but flagged transition, or the empty string.
func (s ComplianceStatus) TransitionWarning(to ComplianceStatus) string {
	return flaggedStatusTransitions[statusPair{s, to}]
}

// RequiresAlert reports whether entering this status raises a STATUS_CHANGE
// alert. Deteriorated standings are surfaced to compliance officers.
func (s ComplianceStatus) RequiresAlert() bool {
	switch s {
	case StatusNonCompliant, StatusUnderInvestigation, StatusSuspended:
		return true
	default:
		return false
	}
}
