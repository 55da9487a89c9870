package domain

import dErrors "finreg/pkg/domain-errors"

// Severity is the ordered classification of a single violation,
// independent of but influencing the owning entity's risk level.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRanks = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// scoreWeights are the compliance score deductions per violation within the
// scoring window: 20 points per CRITICAL, 10 per HIGH, 5 per anything else.
var scoreWeights = map[Severity]int{
	SeverityCritical: 20,
	SeverityHigh:     10,
	SeverityMedium:   5,
	SeverityLow:      5,
}

// Severities lists all severities from least to most severe.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// ParseSeverity constructs a Severity from external input.
func ParseSeverity(s string) (Severity, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "severity cannot be empty")
	}
	sev := Severity(s)
	if !sev.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid severity")
	}
	return sev, nil
}

// IsValid checks if the severity is one of the supported enum values.
func (s Severity) IsValid() bool {
	_, ok := severityRanks[s]
	return ok
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// Rank returns the position of the severity in the total order, starting at 1.
func (s Severity) Rank() int {
	return severityRanks[s]
}

// IsMoreSevereThan reports whether s is strictly more severe than other.
func (s Severity) IsMoreSevereThan(other Severity) bool {
	return s.Rank() > other.Rank()
}

// ScoreWeight returns the compliance score deduction for one violation of
// this severity.
func (s Severity) ScoreWeight() int {
	return scoreWeights[s]
}
