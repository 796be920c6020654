// Package domain holds the shared error kinds and the request-scoped account
// identity used by every module.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across modules. Handlers map these to HTTP status
// codes; services return them (possibly wrapped) and never swallow them.
var (
	// ErrNotFound - the target entity does not exist or is not visible to
	// the calling account.
	ErrNotFound = errors.New("not found")

	// ErrDanglingReference - a referenced id does not resolve to an existing
	// entity visible to the caller (e.g. a field pointing at a missing
	// selector, or attaching a missing member to a strategy).
	ErrDanglingReference = errors.New("referenced entity does not exist")

	// ErrConflict - the operation would violate an integrity constraint
	// (deleting a still-referenced resource, duplicate email).
	ErrConflict = errors.New("conflict")

	// ErrInsufficientFunds - a debit would drive the account balance below
	// zero.
	ErrInsufficientFunds = errors.New("insufficient balance")

	// ErrUnauthenticated - missing or invalid bearer credential.
	ErrUnauthenticated = errors.New("authentication required")
)

// ValidationError aggregates per-field validation failures. It is returned
// by Create operations when input is missing or malformed.
type ValidationError struct {
	Problems []string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// NewValidationError builds a ValidationError from one or more problems.
func NewValidationError(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validator accumulates field checks and produces a single ValidationError.
type Validator struct {
	problems []string
}

// Require records a problem when ok is false.
func (v *Validator) Require(ok bool, problem string) {
	if !ok {
		v.problems = append(v.problems, problem)
	}
}

// Requiref records a formatted problem when ok is false.
func (v *Validator) Requiref(ok bool, format string, args ...interface{}) {
	if !ok {
		v.problems = append(v.problems, fmt.Sprintf(format, args...))
	}
}

// Err returns the accumulated ValidationError, or nil when all checks passed.
func (v *Validator) Err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}
