package ledger

import (
	"database/sql"
	"sync"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/magpie/internal/database"
	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/events"
	"github.com/corvidlabs/magpie/internal/locking"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := database.Schema("ledger")
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	repo := NewRepository(db, zerolog.Nop())
	return NewService(repo, locking.NewManager(), events.NewBus(zerolog.Nop()), zerolog.Nop())
}

func TestBalanceStartsAtZero(t *testing.T) {
	svc := newTestService(t)

	balance, err := svc.Balance(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestDeposit(t *testing.T) {
	svc := newTestService(t)
	account := uuid.New()

	tx, err := svc.Deposit(account, 100, "")
	require.NoError(t, err)
	assert.Equal(t, int64(100), tx.Amount)
	assert.Equal(t, KeyDeposit, tx.Key)

	balance, err := svc.Balance(account)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(t)
	account := uuid.New()

	_, err := svc.Deposit(account, 0, "")
	assert.True(t, domain.IsValidation(err))

	_, err = svc.Deposit(account, -5, "")
	assert.True(t, domain.IsValidation(err))
}

func TestDepositRequestIDIdempotency(t *testing.T) {
	svc := newTestService(t)
	account := uuid.New()

	first, err := svc.Deposit(account, 100, "req-1")
	require.NoError(t, err)

	// Same request id, even with a different amount, returns the original
	// transaction and appends nothing.
	second, err := svc.Deposit(account, 250, "req-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(100), second.Amount)

	balance, err := svc.Balance(account)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestDebit(t *testing.T) {
	svc := newTestService(t)
	account := uuid.New()

	_, err := svc.Deposit(account, 100, "")
	require.NoError(t, err)

	err = database.WithTransaction(svc.repo.DB(), func(tx *sql.Tx) error {
		_, err := svc.DebitTx(tx, account, 30, KeyJobExecution, "{}")
		return err
	})
	require.NoError(t, err)

	balance, err := svc.Balance(account)
	require.NoError(t, err)
	assert.Equal(t, int64(70), balance)
}

func TestDebitInsufficientFunds(t *testing.T) {
	svc := newTestService(t)
	account := uuid.New()

	_, err := svc.Deposit(account, 10, "")
	require.NoError(t, err)

	err = database.WithTransaction(svc.repo.DB(), func(tx *sql.Tx) error {
		_, err := svc.DebitTx(tx, account, 11, KeyJobExecution, "{}")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// The failed debit left no trace.
	balance, err := svc.Balance(account)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	list, err := svc.List(account)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(t)
	account := uuid.New()

	err := database.WithTransaction(svc.repo.DB(), func(tx *sql.Tx) error {
		_, err := svc.DebitTx(tx, account, 0, KeyJobExecution, "{}")
		return err
	})
	assert.True(t, domain.IsValidation(err))
}

func TestListNewestFirst(t *testing.T) {
	svc := newTestService(t)
	account := uuid.New()

	first, err := svc.Deposit(account, 100, "")
	require.NoError(t, err)
	second, err := svc.Deposit(account, 200, "")
	require.NoError(t, err)

	list, err := svc.List(account)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestConcurrentDepositAndDebit(t *testing.T) {
	svc := newTestService(t)
	account := uuid.New()

	_, err := svc.Deposit(account, 50, "")
	require.NoError(t, err)

	// A deposit of 100 and a debit of 60 race. Whichever order the lock
	// grants, the ledger must end at 90: the debit either sees 50 and
	// fails, then retries against 150, or sees 150 and succeeds outright.
	debit := func() error {
		return svc.locks.WithLock(LockKey(account), func() error {
			return database.WithTransaction(svc.repo.DB(), func(tx *sql.Tx) error {
				_, err := svc.DebitTx(tx, account, 60, KeyJobExecution, "{}")
				return err
			})
		})
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.Deposit(account, 100, "")
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		if err := debit(); err != nil {
			require.ErrorIs(t, err, domain.ErrInsufficientFunds)
			require.NoError(t, debit())
		}
	}()
	wg.Wait()

	balance, err := svc.Balance(account)
	require.NoError(t, err)
	assert.Equal(t, int64(90), balance)
}

func TestConcurrentDepositsAllLand(t *testing.T) {
	svc := newTestService(t)
	account := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Deposit(account, 5, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := svc.Balance(account)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}
