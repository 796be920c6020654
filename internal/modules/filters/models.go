// Package filters manages the registry of predicates applied to extracted
// field values.
package filters

import (
	"time"

	"github.com/google/uuid"

	"github.com/corvidlabs/magpie/internal/domain"
)

// Type selects the predicate applied to a field's extracted value.
type Type string

const (
	TypeStringEquals   Type = "string_equals"
	TypeStringContains Type = "string_contains"
	TypeNumberGT       Type = "number_gt"
	TypeNumberLT       Type = "number_lt"
)

// ValidType reports whether t is a known filter type.
func ValidType(t Type) bool {
	switch t {
	case TypeStringEquals, TypeStringContains, TypeNumberGT, TypeNumberLT:
		return true
	}
	return false
}

// Filter is a predicate over one field's extracted value.
type Filter struct {
	ID        uuid.UUID `json:"id" msgpack:"id"`
	UserID    uuid.UUID `json:"user_id" msgpack:"user_id"`
	FieldID   uuid.UUID `json:"field_id" msgpack:"field_id"`
	Name      string    `json:"name" msgpack:"name"`
	Type      Type      `json:"type" msgpack:"type"`
	Value     string    `json:"value" msgpack:"value"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}

// Validate checks required fields before persistence.
func (f *Filter) Validate() error {
	var v domain.Validator

	v.Require(f.Name != "", "name is required")
	v.Require(f.FieldID != uuid.Nil, "field_id is required")
	v.Require(f.Value != "", "value is required")
	v.Requiref(ValidType(f.Type), "type must be one of %q, %q, %q, %q",
		TypeStringEquals, TypeStringContains, TypeNumberGT, TypeNumberLT)

	return v.Err()
}
