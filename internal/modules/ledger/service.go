package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/database"
	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/events"
	"github.com/corvidlabs/magpie/internal/locking"
)

// Service owns balance reads and ledger writes. All balance-affecting
// operations on one account are serialized through the lock manager, so two
// concurrent debits cannot both observe the same pre-debit balance.
type Service struct {
	repo   *Repository
	locks  *locking.Manager
	events *events.Bus
	log    zerolog.Logger
}

// NewService creates a new ledger service
func NewService(repo *Repository, locks *locking.Manager, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locks:  locks,
		events: bus,
		log:    log.With().Str("service", "ledger").Logger(),
	}
}

// LockKey returns the lock name serializing balance operations for the
// account. The jobs service takes the same lock when it debits.
func LockKey(userID uuid.UUID) string {
	return "ledger:" + userID.String()
}

// Balance returns the account's current balance.
func (s *Service) Balance(userID uuid.UUID) (int64, error) {
	return s.repo.Balance(userID)
}

// List returns the account's transactions newest first.
func (s *Service) List(userID uuid.UUID) ([]*Transaction, error) {
	return s.repo.List(userID)
}

// Deposit appends a positive transaction. A repeated requestID returns the
// original transaction instead of appending again.
func (s *Service) Deposit(userID uuid.UUID, amount int64, requestID string) (*Transaction, error) {
	var v domain.Validator
	v.Require(amount > 0, "amount must be positive")
	if err := v.Err(); err != nil {
		return nil, err
	}

	var t *Transaction

	err := s.locks.WithLock(LockKey(userID), func() error {
		if requestID != "" {
			existing, err := s.repo.GetByRequestID(userID, requestID)
			if err == nil {
				t = existing
				return nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}

		t = &Transaction{
			ID:        uuid.New(),
			UserID:    userID,
			Amount:    amount,
			Key:       KeyDeposit,
			RequestID: requestID,
			CreatedAt: time.Now(),
		}

		return database.WithTransaction(s.repo.DB(), func(tx *sql.Tx) error {
			return s.repo.AppendTx(tx, t)
		})
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(events.DepositProcessed, "ledger", map[string]interface{}{
		"user_id": userID.String(),
		"amount":  amount,
	})

	return t, nil
}

// DebitTx appends a negative transaction inside an open transaction,
// failing with domain.ErrInsufficientFunds when the balance cannot cover
// the amount. The caller must hold the account's ledger lock; the jobs
// service relies on this to commit the debit and the job row atomically.
func (s *Service) DebitTx(tx *sql.Tx, userID uuid.UUID, amount int64, key, meta string) (*Transaction, error) {
	if amount <= 0 {
		return nil, domain.NewValidationError("debit amount must be positive")
	}

	balance, err := s.repo.BalanceTx(tx, userID)
	if err != nil {
		return nil, err
	}
	if balance-amount < 0 {
		return nil, fmt.Errorf("balance %d cannot cover %d: %w", balance, amount, domain.ErrInsufficientFunds)
	}

	t := &Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    -amount,
		Key:       key,
		Meta:      meta,
		CreatedAt: time.Now(),
	}

	if err := s.repo.AppendTx(tx, t); err != nil {
		return nil, err
	}
	return t, nil
}
