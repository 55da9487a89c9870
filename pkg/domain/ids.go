// Package domain holds the shared vocabulary of the compliance engine:
// typed identifiers and the enumerated values (entity type, compliance
// status, risk level, violation severity and status, alert type and
// priority) together with the transition and interval tables that govern
// them. Construct values via the Parse functions at trust boundaries;
// direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "finreg/pkg/domain-errors"
)

// Typed identifiers prevent cross-type assignment at compile time: an
// EntityID can never be passed where a ViolationID is expected.
type (
	EntityID     uuid.UUID
	ViolationID  uuid.UUID
	AlertID      uuid.UUID
	AuditEntryID uuid.UUID
)

// parseUUID enforces the shared parsing invariant: IDs must be valid,
// non-empty, non-nil UUIDs.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", label)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", label)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be nil", label)
	}
	return parsed, nil
}

// ParseEntityID constructs an EntityID from external input.
func ParseEntityID(s string) (EntityID, error) {
	parsed, err := parseUUID(s, "entity id")
	if err != nil {
		return EntityID{}, err
	}
	return EntityID(parsed), nil
}

// ParseViolationID constructs a ViolationID from external input.
func ParseViolationID(s string) (ViolationID, error) {
	parsed, err := parseUUID(s, "violation id")
	if err != nil {
		return ViolationID{}, err
	}
	return ViolationID(parsed), nil
}

// ParseAlertID constructs an AlertID from external input.
func ParseAlertID(s string) (AlertID, error) {
	parsed, err := parseUUID(s, "alert id")
	if err != nil {
		return AlertID{}, err
	}
	return AlertID(parsed), nil
}

// ParseAuditEntryID constructs an AuditEntryID from external input.
func ParseAuditEntryID(s string) (AuditEntryID, error) {
	parsed, err := parseUUID(s, "audit entry id")
	if err != nil {
		return AuditEntryID{}, err
	}
	return AuditEntryID(parsed), nil
}

// NewEntityID generates a fresh EntityID.
func NewEntityID() EntityID { return EntityID(uuid.New()) }

// NewViolationID generates a fresh ViolationID.
func NewViolationID() ViolationID { return ViolationID(uuid.New()) }

// NewAlertID generates a fresh AlertID.
func NewAlertID() AlertID { return AlertID(uuid.New()) }

// NewAuditEntryID generates a fresh AuditEntryID.
func NewAuditEntryID() AuditEntryID { return AuditEntryID(uuid.New()) }

func (id EntityID) String() string     { return uuid.UUID(id).String() }
func (id ViolationID) String() string  { return uuid.UUID(id).String() }
func (id AlertID) String() string      { return uuid.UUID(id).String() }
func (id AuditEntryID) String() string { return uuid.UUID(id).String() }

func (id EntityID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ViolationID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id AlertID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id AuditEntryID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// The Text marshalling pair puts canonical UUID strings on the wire.
// Unlike the Parse functions, UnmarshalText accepts the nil UUID: a zero
// id is a valid serialized state (an alert without a violation link), and
// rejecting nil remains the job of the trust-boundary parsers.

func (id EntityID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id ViolationID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id AlertID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id AuditEntryID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *EntityID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid entity id")
	}
	*id = EntityID(parsed)
	return nil
}

func (id *ViolationID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid violation id")
	}
	*id = ViolationID(parsed)
	return nil
}

func (id *AlertID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid alert id")
	}
	*id = AlertID(parsed)
	return nil
}

func (id *AuditEntryID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid audit entry id")
	}
	*id = AuditEntryID(parsed)
	return nil
}
