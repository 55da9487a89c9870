package handler

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finreg/internal/entity/models"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
)

// dateLayout is the wire format for date-only fields such as license
// expiry. Timestamps in responses stay RFC 3339.
const dateLayout = "2006-01-02"

// RegisterEntityRequest is the HTTP request body for POST /entities.
//
// Validate checks only the shape of the payload (parsable dates, known
// field formats). Domain rules, including required fields, run in the
// service so the caller receives the complete ordered message list in one
// response.
type RegisterEntityRequest struct {
	Name             string          `json:"name"`
	Type             string          `json:"type"`
	NMLSID           string          `json:"nmls_id"`
	DBAName          string          `json:"dba_name"`
	PrimaryContact   string          `json:"primary_contact"`
	ContactEmail     string          `json:"contact_email"`
	ContactPhone     string          `json:"contact_phone"`
	AddressLine1     string          `json:"address_line1"`
	AddressLine2     string          `json:"address_line2"`
	City             string          `json:"city"`
	State            string          `json:"state"`
	ZipCode          string          `json:"zip_code"`
	LicenseNumber    string          `json:"license_number"`
	LicenseExpiry    string          `json:"license_expiry"`
	ComplianceStatus string          `json:"compliance_status"`
	RiskLevel        string          `json:"risk_level"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	EmployeeCount    int             `json:"employee_count"`
	Notes            string          `json:"notes"`

	// Parsed values (populated by Validate)
	parsedExpiry *time.Time
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RegisterEntityRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Name = strings.TrimSpace(r.Name)
	r.LicenseNumber = strings.TrimSpace(r.LicenseNumber)

	if r.LicenseExpiry != "" {
		expiry, err := time.Parse(dateLayout, r.LicenseExpiry)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "license_expiry must be formatted YYYY-MM-DD")
		}
		r.parsedExpiry = &expiry
	}

	return nil
}

// ToEntity maps the request onto a candidate entity for the registry.
// Unknown enum values pass through unchanged so the service reports them
// alongside the other validation failures.
func (r *RegisterEntityRequest) ToEntity() *models.Entity {
	return &models.Entity{
		Name:             r.Name,
		Type:             id.EntityType(r.Type),
		NMLSID:           r.NMLSID,
		DBAName:          r.DBAName,
		PrimaryContact:   r.PrimaryContact,
		ContactEmail:     r.ContactEmail,
		ContactPhone:     r.ContactPhone,
		AddressLine1:     r.AddressLine1,
		AddressLine2:     r.AddressLine2,
		City:             r.City,
		State:            r.State,
		ZipCode:          r.ZipCode,
		LicenseNumber:    r.LicenseNumber,
		LicenseExpiry:    r.parsedExpiry,
		ComplianceStatus: id.ComplianceStatus(r.ComplianceStatus),
		RiskLevel:        id.RiskLevel(r.RiskLevel),
		TotalAssets:      r.TotalAssets,
		EmployeeCount:    r.EmployeeCount,
		Notes:            r.Notes,
	}
}

// UpdateEntityRequest is the HTTP request body for PUT /entities/{entityID}.
// The body carries the full entity representation; compliance status, risk
// level, the active flag and the review schedule are owned by their
// dedicated operations and ignored here.
type UpdateEntityRequest struct {
	RegisterEntityRequest
}

// UpdateStatusRequest is the HTTP request body for POST
// /entities/{entityID}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`

	parsedStatus id.ComplianceStatus
}

// Validate validates and parses the request.
func (r *UpdateStatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	status, err := id.ParseComplianceStatus(strings.TrimSpace(r.Status))
	if err != nil {
		return err
	}
	r.parsedStatus = status
	return nil
}

// ParsedStatus returns the validated target status.
func (r *UpdateStatusRequest) ParsedStatus() id.ComplianceStatus {
	return r.parsedStatus
}

// UpdateRiskRequest is the HTTP request body for POST
// /entities/{entityID}/risk.
type UpdateRiskRequest struct {
	RiskLevel string `json:"risk_level"`
	Reason    string `json:"reason"`

	parsedRisk id.RiskLevel
}

// Validate validates and parses the request.
func (r *UpdateRiskRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	level, err := id.ParseRiskLevel(strings.TrimSpace(r.RiskLevel))
	if err != nil {
		return err
	}
	r.parsedRisk = level
	return nil
}

// ParsedRiskLevel returns the validated target risk level.
func (r *UpdateRiskRequest) ParsedRiskLevel() id.RiskLevel {
	return r.parsedRisk
}

// ConductReviewRequest is the HTTP request body for POST
// /entities/{entityID}/review.
type ConductReviewRequest struct {
	Status    string `json:"status"`
	RiskLevel string `json:"risk_level"`
	Notes     string `json:"notes"`

	parsedStatus id.ComplianceStatus
	parsedRisk   id.RiskLevel
}

// Validate validates and parses the request.
func (r *ConductReviewRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	status, err := id.ParseComplianceStatus(strings.TrimSpace(r.Status))
	if err != nil {
		return err
	}
	level, err := id.ParseRiskLevel(strings.TrimSpace(r.RiskLevel))
	if err != nil {
		return err
	}
	r.parsedStatus = status
	r.parsedRisk = level
	return nil
}

// ParsedStatus returns the validated review outcome status.
func (r *ConductReviewRequest) ParsedStatus() id.ComplianceStatus {
	return r.parsedStatus
}

// ParsedRiskLevel returns the validated review outcome risk level.
func (r *ConductReviewRequest) ParsedRiskLevel() id.RiskLevel {
	return r.parsedRisk
}

// RenewLicenseRequest is the HTTP request body for POST
// /entities/{entityID}/license/renew.
type RenewLicenseRequest struct {
	NewExpiry string `json:"new_expiry"`

	parsedExpiry time.Time
}

// Validate validates and parses the request.
func (r *RenewLicenseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	if strings.TrimSpace(r.NewExpiry) == "" {
		return dErrors.New(dErrors.CodeValidation, "new_expiry is required")
	}
	expiry, err := time.Parse(dateLayout, r.NewExpiry)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "new_expiry must be formatted YYYY-MM-DD")
	}
	r.parsedExpiry = expiry
	return nil
}

// ParsedExpiry returns the validated new expiry date.
func (r *RenewLicenseRequest) ParsedExpiry() time.Time {
	return r.parsedExpiry
}

// SuspendLicenseRequest is the HTTP request body for POST
// /entities/{entityID}/license/suspend.
type SuspendLicenseRequest struct {
	Reason string `json:"reason"`
}

// Validate validates the request.
func (r *SuspendLicenseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	return nil
}
