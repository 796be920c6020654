// Package auth issues and verifies the bearer credentials that scope every
// API operation to an account.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/corvidlabs/magpie/internal/domain"
)

// Tokens signs and verifies HS256 bearer tokens carrying the account
// identity.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

// NewTokens creates a token service. secret must be non-empty; ttl is the
// token lifetime.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue creates a signed bearer token for the account.
func (t *Tokens) Issue(account *domain.Account) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   account.ID.String(),
		"email": account.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(t.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify parses a bearer token and returns the account it identifies.
// Returns domain.ErrUnauthenticated for anything malformed, forged, or
// expired.
func (t *Tokens) Verify(tokenString string) (*domain.Account, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, domain.ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}

	email, _ := claims["email"].(string)

	return &domain.Account{ID: id, Email: email}, nil
}
