// Package ledger manages the append-only token ledger. Balances are never
// stored: a balance is always the sum of the account's transactions.
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Transaction keys.
const (
	KeyDeposit      = "deposit"
	KeyJobExecution = "job_execution"
)

// Transaction is one signed ledger entry. Deposits are positive, debits
// negative.
type Transaction struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Amount    int64     `json:"amount"`
	Key       string    `json:"key"`
	RequestID string    `json:"request_id,omitempty"`
	Meta      string    `json:"meta,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
