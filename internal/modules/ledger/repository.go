package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/domain"
)

// Repository handles transaction rows in ledger.db. The write paths take an
// *sql.Tx so callers can bundle a ledger append with other writes (job
// creation debits commit in the same transaction as the job row).
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new ledger repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "ledger").Logger(),
	}
}

// DB exposes the underlying handle so services can open transactions that
// span the ledger and the jobs table.
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Balance returns SUM(amount) for the account.
func (r *Repository) Balance(userID uuid.UUID) (int64, error) {
	var balance int64
	err := r.db.QueryRow(`
		SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = ?
	`, userID.String()).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to compute balance: %w", err)
	}
	return balance, nil
}

// BalanceTx is Balance inside an open transaction.
func (r *Repository) BalanceTx(tx *sql.Tx, userID uuid.UUID) (int64, error) {
	var balance int64
	err := tx.QueryRow(`
		SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = ?
	`, userID.String()).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to compute balance: %w", err)
	}
	return balance, nil
}

// AppendTx inserts a transaction inside an open transaction.
func (r *Repository) AppendTx(tx *sql.Tx, t *Transaction) error {
	var requestID interface{}
	if t.RequestID != "" {
		requestID = t.RequestID
	}

	meta := t.Meta
	if meta == "" {
		meta = "{}"
	}

	_, err := tx.Exec(`
		INSERT INTO transactions (id, user_id, amount, key, request_id, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.ID.String(), t.UserID.String(), t.Amount, t.Key, requestID, meta, t.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// GetByRequestID looks up a prior transaction by its idempotency key.
func (r *Repository) GetByRequestID(userID uuid.UUID, requestID string) (*Transaction, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, amount, key, request_id, meta, created_at
		FROM transactions
		WHERE user_id = ? AND request_id = ?
	`, userID.String(), requestID)

	return scanTransaction(row.Scan)
}

// List returns the account's transactions newest first.
func (r *Repository) List(userID uuid.UUID) ([]*Transaction, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, amount, key, request_id, meta, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY rowid DESC
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(scan func(dest ...interface{}) error) (*Transaction, error) {
	var (
		t             Transaction
		id, userID    string
		requestID     sql.NullString
		createdAtUnix int64
	)

	err := scan(&id, &userID, &t.Amount, &t.Key, &requestID, &t.Meta, &createdAtUnix)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	t.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt transaction id %q: %w", id, err)
	}
	t.UserID, err = uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("corrupt transaction user id %q: %w", userID, err)
	}
	t.RequestID = requestID.String
	t.CreatedAt = time.Unix(createdAtUnix, 0)
	return &t, nil
}
