// Package fields manages the registry of typed extraction fields. A field
// binds a selector to an expected value shape.
package fields

import (
	"time"

	"github.com/google/uuid"

	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/modules/selectors"
)

// Type constrains the shape of a field's extracted value.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeFloat   Type = "float"
)

// ValidType reports whether t is a known field type.
func ValidType(t Type) bool {
	return t == TypeString || t == TypeInteger || t == TypeFloat
}

// Field is a typed value extracted through a selector.
type Field struct {
	ID         uuid.UUID            `json:"id" msgpack:"id"`
	UserID     uuid.UUID            `json:"user_id" msgpack:"user_id"`
	SelectorID uuid.UUID            `json:"selector_id" msgpack:"selector_id"`
	Name       string               `json:"name" msgpack:"name"`
	Type       Type                 `json:"type" msgpack:"type"`
	Visibility selectors.Visibility `json:"visibility" msgpack:"visibility"`
	CreatedAt  time.Time            `json:"created_at" msgpack:"created_at"`
}

// Validate checks required fields before persistence.
func (f *Field) Validate() error {
	var v domain.Validator

	v.Require(f.Name != "", "name is required")
	v.Require(f.SelectorID != uuid.Nil, "selector_id is required")
	v.Requiref(ValidType(f.Type), "type must be one of %q, %q, %q", TypeString, TypeInteger, TypeFloat)
	v.Requiref(selectors.ValidVisibility(f.Visibility), "visibility must be %q or %q",
		selectors.VisibilityPrivate, selectors.VisibilityPublic)

	return v.Err()
}
