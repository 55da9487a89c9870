package models

import (
	"fmt"
	"regexp"
	"time"

	dErrors "finreg/pkg/domain-errors"
)

var (
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\d{10,11}$`)
	phoneStrip   = regexp.MustCompile(`[\s\-().]`)
	statePattern = regexp.MustCompile(`^[A-Za-z]{2}$`)
	zipPattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

// ValidationMessages runs every field rule against the entity and returns
// the failures in rule order. Rules do not short-circuit: a caller sees
// every problem in a single pass. An empty result means the entity is valid.
//
// The license expiry rule only applies to new registrations: existing
// entities legitimately carry expired licenses, and the alert engine is
// responsible for flagging those.
func (e *Entity) ValidationMessages(now time.Time, newRegistration bool) []string {
	var msgs []string

	if e.Name == "" {
		msgs = append(msgs, "Entity name is required")
	}
	if !e.Type.IsValid() {
		msgs = append(msgs, "Entity type is required")
	}
	if e.LicenseNumber == "" {
		msgs = append(msgs, "License number is required")
	}
	if !e.ComplianceStatus.IsValid() {
		msgs = append(msgs, "Compliance status is required")
	}
	if !e.RiskLevel.IsValid() {
		msgs = append(msgs, "Risk level is required")
	}
	if e.ContactEmail != "" && !emailPattern.MatchString(e.ContactEmail) {
		msgs = append(msgs, fmt.Sprintf("Invalid email format: %s", e.ContactEmail))
	}
	if e.ContactPhone != "" {
		digits := phoneStrip.ReplaceAllString(e.ContactPhone, "")
		if !phonePattern.MatchString(digits) {
			msgs = append(msgs, fmt.Sprintf("Invalid phone format: %s", e.ContactPhone))
		}
	}
	if e.State != "" && !statePattern.MatchString(e.State) {
		msgs = append(msgs, "State must be 2-character code")
	}
	if e.ZipCode != "" && !zipPattern.MatchString(e.ZipCode) {
		msgs = append(msgs, fmt.Sprintf("Invalid ZIP code format: %s", e.ZipCode))
	}
	if newRegistration && e.LicenseExpiry != nil && e.LicenseExpiry.Before(now) {
		msgs = append(msgs, "License expiry date cannot be in the past")
	}
	if e.TotalAssets.IsNegative() {
		msgs = append(msgs, "Total assets cannot be negative")
	}
	if e.EmployeeCount < 0 {
		msgs = append(msgs, "Employee count cannot be negative")
	}

	return msgs
}

// Validate wraps ValidationMessages into a coded error. Returns nil when
// the entity passes every rule.
func (e *Entity) Validate(now time.Time, newRegistration bool) error {
	if msgs := e.ValidationMessages(now, newRegistration); len(msgs) > 0 {
		return dErrors.Validation(msgs)
	}
	return nil
}
