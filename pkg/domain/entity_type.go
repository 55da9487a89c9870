package domain

import dErrors "finreg/pkg/domain-errors"

// EntityType classifies a regulated financial institution.
type EntityType string

const (
	EntityTypeBank         EntityType = "BANK"
	EntityTypeInsurance    EntityType = "INSURANCE"
	EntityTypeMSB          EntityType = "MSB"
	EntityTypeFintech      EntityType = "FINTECH"
	EntityTypeCreditUnion  EntityType = "CREDIT_UNION"
	EntityTypeBrokerDealer EntityType = "BROKER_DEALER"
)

// validEntityTypes is the single source of truth for supported entity types.
var validEntityTypes = map[EntityType]bool{
	EntityTypeBank:         true,
	EntityTypeInsurance:    true,
	EntityTypeMSB:          true,
	EntityTypeFintech:      true,
	EntityTypeCreditUnion:  true,
	EntityTypeBrokerDealer: true,
}

// EntityTypes lists all supported entity types in a stable order.
func EntityTypes() []EntityType {
	return []EntityType{
		EntityTypeBank,
		EntityTypeInsurance,
		EntityTypeMSB,
		EntityTypeFintech,
		EntityTypeCreditUnion,
		EntityTypeBrokerDealer,
	}
}

// ParseEntityType constructs an EntityType from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseEntityType(s string) (EntityType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "entity type cannot be empty")
	}
	t := EntityType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid entity type")
	}
	return t, nil
}

// IsValid checks if the entity type is one of the supported enum values.
func (t EntityType) IsValid() bool {
	return validEntityTypes[t]
}

// String returns the string representation of the entity type.
func (t EntityType) String() string {
	return string(t)
}
