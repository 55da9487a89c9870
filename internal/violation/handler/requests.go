package handler

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finreg/internal/violation/models"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
)

// dateLayout is the wire format for date-only fields such as violation and
// payment dates.
const dateLayout = "2006-01-02"

// RecordViolationRequest is the HTTP request body for POST /violations.
//
// Validate checks payload shape only; the recording rules (required
// entity, type and severity, non-negative fine) run in the service so the
// caller receives the complete ordered message list in one response.
type RecordViolationRequest struct {
	EntityID         string          `json:"entity_id"`
	Type             string          `json:"type"`
	Code             string          `json:"code"`
	Description      string          `json:"description"`
	Severity         string          `json:"severity"`
	ViolationDate    string          `json:"violation_date"`
	DiscoveryDate    string          `json:"discovery_date"`
	ReportedBy       string          `json:"reported_by"`
	FineAmount       decimal.Decimal `json:"fine_amount"`
	PaymentDueDate   string          `json:"payment_due_date"`
	CorrectiveAction string          `json:"corrective_action"`
	FollowUpDate     string          `json:"follow_up_date"`

	// Parsed values (populated by Validate)
	parsedEntityID      id.EntityID
	parsedViolationDate time.Time
	parsedDiscoveryDate time.Time
	parsedPaymentDue    *time.Time
	parsedFollowUp      *time.Time
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RecordViolationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Type = strings.TrimSpace(r.Type)

	// An absent entity id is reported by the recording rules; only a
	// present-but-malformed one fails here.
	if r.EntityID != "" {
		entityID, err := id.ParseEntityID(r.EntityID)
		if err != nil {
			return err
		}
		r.parsedEntityID = entityID
	}

	var err error
	if r.parsedViolationDate, err = parseOptionalDate(r.ViolationDate, "violation_date"); err != nil {
		return err
	}
	if r.parsedDiscoveryDate, err = parseOptionalDate(r.DiscoveryDate, "discovery_date"); err != nil {
		return err
	}

	if r.PaymentDueDate != "" {
		due, err := parseOptionalDate(r.PaymentDueDate, "payment_due_date")
		if err != nil {
			return err
		}
		r.parsedPaymentDue = &due
	}
	if r.FollowUpDate != "" {
		followUp, err := parseOptionalDate(r.FollowUpDate, "follow_up_date")
		if err != nil {
			return err
		}
		r.parsedFollowUp = &followUp
	}

	return nil
}

// ToViolation maps the request onto a candidate violation for the tracker.
// An unknown severity passes through unchanged so the service reports it
// alongside the other recording failures.
func (r *RecordViolationRequest) ToViolation() *models.Violation {
	return &models.Violation{
		EntityID:         r.parsedEntityID,
		Type:             r.Type,
		Code:             r.Code,
		Description:      r.Description,
		Severity:         id.Severity(r.Severity),
		ViolationDate:    r.parsedViolationDate,
		DiscoveryDate:    r.parsedDiscoveryDate,
		ReportedBy:       r.ReportedBy,
		FineAmount:       r.FineAmount,
		PaymentDueDate:   r.parsedPaymentDue,
		CorrectiveAction: r.CorrectiveAction,
		FollowUpDate:     r.parsedFollowUp,
	}
}

// ResolveViolationRequest is the HTTP request body for POST
// /violations/{violationID}/resolve.
type ResolveViolationRequest struct {
	Notes string `json:"notes"`
}

// Validate validates the request.
func (r *ResolveViolationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Notes = strings.TrimSpace(r.Notes)
	return nil
}

// RecordPaymentRequest is the HTTP request body for POST
// /violations/{violationID}/payment.
type RecordPaymentRequest struct {
	PaymentDate string `json:"payment_date"`

	parsedPaymentDate time.Time
}

// Validate validates and parses the request.
func (r *RecordPaymentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	if strings.TrimSpace(r.PaymentDate) == "" {
		return dErrors.New(dErrors.CodeValidation, "payment_date is required")
	}
	paymentDate, err := time.Parse(dateLayout, r.PaymentDate)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "payment_date must be formatted YYYY-MM-DD")
	}
	r.parsedPaymentDate = paymentDate
	return nil
}

// ParsedPaymentDate returns the validated payment date.
func (r *RecordPaymentRequest) ParsedPaymentDate() time.Time {
	return r.parsedPaymentDate
}

// parseOptionalDate parses a date-only field, returning the zero time for
// an empty value so recording defaults can fill it.
func parseOptionalDate(value, field string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, dErrors.Newf(dErrors.CodeValidation, "%s must be formatted YYYY-MM-DD", field)
	}
	return parsed, nil
}
