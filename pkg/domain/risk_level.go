package domain

import (
	"time"

	dErrors "finreg/pkg/domain-errors"
)

// RiskLevel is an ordered severity classification of an entity.
// The ordering LOW < MEDIUM < HIGH < CRITICAL drives escalation decisions
// and the review schedule.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// riskRanks defines the total order of risk levels.
var riskRanks = map[RiskLevel]int{
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// reviewIntervalMonths is the review interval table: how long an entity at
// a given risk level may go between mandatory compliance reviews.
var reviewIntervalMonths = map[RiskLevel]int{
	RiskCritical: 3,
	RiskHigh:     6,
	RiskMedium:   12,
	RiskLow:      12,
}

// RiskLevels lists all risk levels from least to most severe.
func RiskLevels() []RiskLevel {
	return []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}
}

// ParseRiskLevel constructs a RiskLevel from external input.
func ParseRiskLevel(s string) (RiskLevel, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "risk level cannot be empty")
	}
	r := RiskLevel(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid risk level")
	}
	return r, nil
}

// IsValid checks if the risk level is one of the supported enum values.
func (r RiskLevel) IsValid() bool {
	_, ok := riskRanks[r]
	return ok
}

// String returns the string representation of the risk level.
func (r RiskLevel) String() string {
	return string(r)
}

// Rank returns the position of the level in the total order, starting at 1.
// Unknown levels rank 0, below every valid level.
func (r RiskLevel) Rank() int {
	return riskRanks[r]
}

// IsHigherThan reports whether r is strictly more severe than other.
func (r RiskLevel) IsHigherThan(other RiskLevel) bool {
	return r.Rank() > other.Rank()
}

// EscalationRequiresAlert reports whether moving from the given level to r
// raises a RISK_ESCALATION alert. Only genuine escalations into the upper
// half of the scale are surfaced; downgrades and lateral moves are not.
func (r RiskLevel) EscalationRequiresAlert(from RiskLevel) bool {
	if !r.IsHigherThan(from) {
		return false
	}
	return r == RiskHigh || r == RiskCritical
}

// ReviewIntervalMonths returns the number of months until the next
// mandatory review for an entity at this risk level.
func (r RiskLevel) ReviewIntervalMonths() int {
	if months, ok := reviewIntervalMonths[r]; ok {
		return months
	}
	return reviewIntervalMonths[RiskLow]
}

// NextReviewDate computes the next mandatory review date from the given
// reference time. Always derived from the interval table so the review
// schedule tracks the current risk level.
func (r RiskLevel) NextReviewDate(from time.Time) time.Time {
	return from.AddDate(0, r.ReviewIntervalMonths(), 0)
}
