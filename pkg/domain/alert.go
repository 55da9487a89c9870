package domain

import dErrors "finreg/pkg/domain-errors"

// AlertType identifies the rule that generated an alert.
type AlertType string

const (
	AlertNewRegistration  AlertType = "NEW_REGISTRATION"
	AlertViolation        AlertType = "VIOLATION"
	AlertOverdueViolation AlertType = "OVERDUE_VIOLATION"
	AlertLicenseExpiring  AlertType = "LICENSE_EXPIRING"
	AlertReviewDue        AlertType = "REVIEW_DUE"
	AlertRiskEscalation   AlertType = "RISK_ESCALATION"
	AlertStatusChange     AlertType = "STATUS_CHANGE"
)

var validAlertTypes = map[AlertType]bool{
	AlertNewRegistration:  true,
	AlertViolation:        true,
	AlertOverdueViolation: true,
	AlertLicenseExpiring:  true,
	AlertReviewDue:        true,
	AlertRiskEscalation:   true,
	AlertStatusChange:     true,
}

// ParseAlertType constructs an AlertType from external input.
func ParseAlertType(s string) (AlertType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "alert type cannot be empty")
	}
	t := AlertType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid alert type")
	}
	return t, nil
}

// IsValid checks if the alert type is one of the supported enum values.
func (t AlertType) IsValid() bool {
	return validAlertTypes[t]
}

// String returns the string representation of the alert type.
func (t AlertType) String() string {
	return string(t)
}

// AlertPriority is the ordered urgency of an alert.
type AlertPriority string

const (
	PriorityLow    AlertPriority = "LOW"
	PriorityMedium AlertPriority = "MEDIUM"
	PriorityHigh   AlertPriority = "HIGH"
	PriorityUrgent AlertPriority = "URGENT"
)

var priorityRanks = map[AlertPriority]int{
	PriorityLow:    1,
	PriorityMedium: 2,
	PriorityHigh:   3,
	PriorityUrgent: 4,
}

// ParseAlertPriority constructs an AlertPriority from external input.
func ParseAlertPriority(s string) (AlertPriority, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "alert priority cannot be empty")
	}
	p := AlertPriority(s)
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid alert priority")
	}
	return p, nil
}

// IsValid checks if the priority is one of the supported enum values.
func (p AlertPriority) IsValid() bool {
	_, ok := priorityRanks[p]
	return ok
}

// String returns the string representation of the priority.
func (p AlertPriority) String() string {
	return string(p)
}

// Rank returns the position of the priority in the total order, starting at 1.
func (p AlertPriority) Rank() int {
	return priorityRanks[p]
}

// ViolationAlertPriority maps a violation's severity to the priority of the
// alert it raises: CRITICAL violations page urgently, HIGH violations page
// at high priority, everything else is routine.
func ViolationAlertPriority(severity Severity) AlertPriority {
	switch severity {
	case SeverityCritical:
		return PriorityUrgent
	case SeverityHigh:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// LicenseExpiryPriority maps the days remaining until license expiry to an
// alert priority: a week or less is urgent, two weeks is high, beyond that
// routine.
func LicenseExpiryPriority(daysUntilExpiry int) AlertPriority {
	switch {
	case daysUntilExpiry <= 7:
		return PriorityUrgent
	case daysUntilExpiry <= 14:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}
