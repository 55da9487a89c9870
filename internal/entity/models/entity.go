package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
)

// Entity is the aggregate root for a regulated financial institution.
//
// Invariants:
//   - Name, Type, LicenseNumber, ComplianceStatus and RiskLevel are always present
//   - NextReviewDate is recomputed from the current risk level whenever the
//     risk level changes or a review is conducted
//   - TotalAssets and EmployeeCount are non-negative
//   - Entities are soft-deleted via Active; records are never removed
//
// Status transitions go through CanChangeStatusTo/ApplyStatusChange so the
// transition table in pkg/domain stays the single source of truth. A formal
// review (ApplyReview) bypasses the table: it is the authorized path out of
// SUSPENDED and UNDER_INVESTIGATION.
type Entity struct {
	ID               id.EntityID         `json:"id"`
	Name             string              `json:"name"`
	Type             id.EntityType       `json:"type"`
	NMLSID           string              `json:"nmls_id,omitempty"`
	DBAName          string              `json:"dba_name,omitempty"`
	PrimaryContact   string              `json:"primary_contact,omitempty"`
	ContactEmail     string              `json:"contact_email,omitempty"`
	ContactPhone     string              `json:"contact_phone,omitempty"`
	AddressLine1     string              `json:"address_line1,omitempty"`
	AddressLine2     string              `json:"address_line2,omitempty"`
	City             string              `json:"city,omitempty"`
	State            string              `json:"state,omitempty"`
	ZipCode          string              `json:"zip_code,omitempty"`
	RegistrationDate time.Time           `json:"registration_date"`
	LicenseNumber    string              `json:"license_number"`
	LicenseExpiry    *time.Time          `json:"license_expiry,omitempty"`
	ComplianceStatus id.ComplianceStatus `json:"compliance_status"`
	RiskLevel        id.RiskLevel        `json:"risk_level"`
	LastReviewDate   *time.Time          `json:"last_review_date,omitempty"`
	NextReviewDate   time.Time           `json:"next_review_date"`
	TotalAssets      decimal.Decimal     `json:"total_assets"`
	EmployeeCount    int                 `json:"employee_count"`
	Active           bool                `json:"active"`
	Notes            string              `json:"notes,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	CreatedBy        string              `json:"created_by"`
	UpdatedAt        time.Time           `json:"updated_at"`
	UpdatedBy        string              `json:"updated_by"`
}

// defaultState applies when a candidate omits the state code. The engine
// serves a New York regulator, so NY is the home jurisdiction.
const defaultState = "NY"

// PrepareForRegistration fills registration defaults on a validated
// candidate: registration date, home state, the active flag, audit
// metadata, and the first review date derived from the initial risk level.
func (e *Entity) PrepareForRegistration(now time.Time, actor string) {
	if e.RegistrationDate.IsZero() {
		e.RegistrationDate = now
	}
	if e.State == "" {
		e.State = defaultState
	}
	e.Active = true
	e.NextReviewDate = e.RiskLevel.NextReviewDate(now)
	e.CreatedAt = now
	e.CreatedBy = actor
	e.UpdatedAt = now
	e.UpdatedBy = actor
}

// IsActive reports whether the entity is live in the registry.
func (e *Entity) IsActive() bool {
	return e.Active
}

// CanDeactivate checks if the entity can be soft-deleted.
func (e *Entity) CanDeactivate() error {
	if !e.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "entity is already inactive")
	}
	return nil
}

// ApplyDeactivation clears the active flag. Call CanDeactivate first.
func (e *Entity) ApplyDeactivation(now time.Time, actor string) {
	e.Active = false
	e.touch(now, actor)
}

// CanReinstate checks if the entity can return to the active registry.
func (e *Entity) CanReinstate() error {
	if e.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "entity is already active")
	}
	return nil
}

// ApplyReinstatement restores the active flag. Call CanReinstate first.
func (e *Entity) ApplyReinstatement(now time.Time, actor string) {
	e.Active = true
	e.touch(now, actor)
}

// CanChangeStatusTo validates a direct status transition against the
// transition table. Returns CodeAlreadyProcessed when the entity is already
// in the target status and CodeInvalidTransition for forbidden moves.
func (e *Entity) CanChangeStatusTo(to id.ComplianceStatus) error {
	if e.ComplianceStatus == to {
		return dErrors.Newf(dErrors.CodeAlreadyProcessed, "entity is already %s", to)
	}
	if allowed, reason := e.ComplianceStatus.CanTransitionTo(to); !allowed {
		return dErrors.New(dErrors.CodeInvalidTransition, reason)
	}
	return nil
}

// ApplyStatusChange moves the entity to the new status.
// Call CanChangeStatusTo first.
func (e *Entity) ApplyStatusChange(to id.ComplianceStatus, now time.Time, actor string) {
	e.ComplianceStatus = to
	e.touch(now, actor)
}

// ApplyRiskChange sets the new risk level and recomputes the next review
// date from the review interval table. No risk transition is forbidden.
func (e *Entity) ApplyRiskChange(level id.RiskLevel, now time.Time, actor string) {
	e.RiskLevel = level
	e.NextReviewDate = level.NextReviewDate(now)
	e.touch(now, actor)
}

// ApplyReview records a formal compliance review: status and risk are set
// directly, the review dates roll forward, and the reviewer's notes join
// the entity's note history under a dated header.
func (e *Entity) ApplyReview(status id.ComplianceStatus, risk id.RiskLevel, notes, actor string, now time.Time) {
	e.ComplianceStatus = status
	e.RiskLevel = risk
	reviewDate := now
	e.LastReviewDate = &reviewDate
	e.NextReviewDate = risk.NextReviewDate(now)
	if notes != "" {
		e.AppendNote(fmt.Sprintf("[%s] Review by %s:\n%s", now.Format("2006-01-02"), actor, notes))
	}
	e.touch(now, actor)
}

// CanRenewLicense validates a license renewal: the new expiry must lie in
// the future.
func (e *Entity) CanRenewLicense(newExpiry, now time.Time) error {
	if !newExpiry.After(now) {
		return dErrors.New(dErrors.CodeValidation, "New expiry date must be in the future")
	}
	return nil
}

// ApplyLicenseRenewal sets the renewed expiry and records the renewal in
// the note history. Call CanRenewLicense first.
func (e *Entity) ApplyLicenseRenewal(newExpiry time.Time, now time.Time, actor string) {
	expiry := newExpiry
	e.LicenseExpiry = &expiry
	e.AppendNote(fmt.Sprintf("[%s] License renewed by %s. New expiry: %s",
		now.Format("2006-01-02"), actor, newExpiry.Format("2006-01-02")))
	e.touch(now, actor)
}

// AppendNote adds a note to the entity's free-text history, separated from
// earlier notes by a blank line.
func (e *Entity) AppendNote(note string) {
	if e.Notes == "" {
		e.Notes = note
		return
	}
	e.Notes = e.Notes + "\n\n" + note
}

func (e *Entity) touch(now time.Time, actor string) {
	e.UpdatedAt = now
	e.UpdatedBy = actor
}

// Clone returns a copy safe to hand across goroutines. Pointer-typed date
// fields are copied so callers cannot reach back into stored state.
func (e *Entity) Clone() *Entity {
	c := *e
	if e.LicenseExpiry != nil {
		v := *e.LicenseExpiry
		c.LicenseExpiry = &v
	}
	if e.LastReviewDate != nil {
		v := *e.LastReviewDate
		c.LastReviewDate = &v
	}
	return &c
}

// LicenseExpiresWithin reports whether the license expiry falls inside
// [now, now+days]. Entities without an expiry date never match.
func (e *Entity) LicenseExpiresWithin(now time.Time, days int) bool {
	if e.LicenseExpiry == nil {
		return false
	}
	expiry := *e.LicenseExpiry
	if expiry.Before(now) {
		return false
	}
	return !expiry.After(now.AddDate(0, 0, days))
}

// ReviewOverdue reports whether the next mandatory review date has passed.
func (e *Entity) ReviewOverdue(now time.Time) bool {
	return !e.NextReviewDate.IsZero() && e.NextReviewDate.Before(now)
}

// DaysUntilLicenseExpiry returns full days until the license expires,
// negative once it has. Zero when no expiry date is set.
func (e *Entity) DaysUntilLicenseExpiry(now time.Time) int {
	if e.LicenseExpiry == nil {
		return 0
	}
	hours := e.LicenseExpiry.Sub(now).Hours()
	if hours < 0 {
		return -int(-hours / 24)
	}
	return int(hours / 24)
}
