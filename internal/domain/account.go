package domain

import (
	"context"

	"github.com/google/uuid"
)

// Account is the authenticated identity scoping every operation. It is
// carried on the request context by the auth middleware, never held in
// ambient mutable state.
type Account struct {
	ID    uuid.UUID
	Email string
}

type contextKey string

const accountContextKey = contextKey("account")

// WithAccount returns a context carrying the authenticated account.
func WithAccount(ctx context.Context, a *Account) context.Context {
	return context.WithValue(ctx, accountContextKey, a)
}

// AccountFromContext retrieves the authenticated account, if any.
func AccountFromContext(ctx context.Context) (*Account, bool) {
	a, ok := ctx.Value(accountContextKey).(*Account)
	return a, ok
}

// MustAccountFromContext retrieves the authenticated account and panics when
// absent. Only reachable behind the auth middleware.
func MustAccountFromContext(ctx context.Context) *Account {
	a, ok := AccountFromContext(ctx)
	if !ok {
		panic("account not found in context")
	}
	return a
}
