// Package users manages accounts: registration, credentials, and profile.
package users

import (
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/corvidlabs/magpie/internal/domain"
)

// User is a registered account. PasswordHash never leaves this package.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Account returns the identity carried on request contexts.
func (u *User) Account() *domain.Account {
	return &domain.Account{ID: u.ID, Email: u.Email}
}

// ValidateRegistration checks registration input before hashing.
func ValidateRegistration(name, email, password string) error {
	var v domain.Validator

	v.Require(name != "", "name is required")
	v.Require(email != "", "email is required")
	if email != "" {
		_, err := mail.ParseAddress(email)
		v.Require(err == nil, "email is invalid")
	}
	v.Require(len(password) >= 8, "password must be at least 8 characters")

	return v.Err()
}
