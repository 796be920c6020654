// Package selectors manages the registry of reusable extraction expressions.
package selectors

import (
	"time"

	"github.com/google/uuid"

	"github.com/corvidlabs/magpie/internal/domain"
)

// Visibility controls cross-account sharing of a selector.
type Visibility string

const (
	// VisibilityPrivate - only the owning account can see the selector.
	VisibilityPrivate Visibility = "private"
	// VisibilityPublic - readable and attachable by any account, writable
	// only by the owner.
	VisibilityPublic Visibility = "public"
)

// ValidVisibility reports whether v is a known visibility value.
func ValidVisibility(v Visibility) bool {
	return v == VisibilityPrivate || v == VisibilityPublic
}

// Selector is a located extraction expression within a source document.
type Selector struct {
	ID         uuid.UUID  `json:"id" msgpack:"id"`
	UserID     uuid.UUID  `json:"user_id" msgpack:"user_id"`
	Name       string     `json:"name" msgpack:"name"`
	Value      string     `json:"value" msgpack:"value"`
	Visibility Visibility `json:"visibility" msgpack:"visibility"`
	CreatedAt  time.Time  `json:"created_at" msgpack:"created_at"`
}

// Validate checks required fields before persistence.
func (s *Selector) Validate() error {
	var v domain.Validator

	v.Require(s.Name != "", "name is required")
	v.Require(s.Value != "", "value is required")
	v.Requiref(ValidVisibility(s.Visibility), "visibility must be %q or %q", VisibilityPrivate, VisibilityPublic)

	return v.Err()
}
