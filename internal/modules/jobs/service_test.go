package jobs

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/magpie/internal/database"
	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/events"
	"github.com/corvidlabs/magpie/internal/locking"
	"github.com/corvidlabs/magpie/internal/modules/fields"
	"github.com/corvidlabs/magpie/internal/modules/filters"
	"github.com/corvidlabs/magpie/internal/modules/ledger"
	"github.com/corvidlabs/magpie/internal/modules/selectors"
	"github.com/corvidlabs/magpie/internal/modules/strategies"
)

const testJobCost = 10

type stubExecutor struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (e *stubExecutor) Execute(_ context.Context, _ *Job, _ *strategies.Strategy) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return e.err
}

func (e *stubExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type testEnv struct {
	jobs       *Service
	repo       *Repository
	strategies *strategies.Service
	ledger     *ledger.Service
	events     *events.Bus
	executor   *stubExecutor
	owner      uuid.UUID
	strategy   *strategies.Strategy
	selector   *selectors.Selector
}

func openSchemaDB(t *testing.T, name string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := database.Schema(name)
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	coreDB := openSchemaDB(t, "core")
	ledgerDB := openSchemaDB(t, "ledger")

	locks := locking.NewManager()
	bus := events.NewBus(zerolog.Nop())

	selectorSvc := selectors.NewService(selectors.NewRepository(coreDB, zerolog.Nop()), zerolog.Nop())
	fieldSvc := fields.NewService(fields.NewRepository(coreDB, zerolog.Nop()), selectorSvc, zerolog.Nop())
	filterSvc := filters.NewService(filters.NewRepository(coreDB, zerolog.Nop()), fieldSvc, zerolog.Nop())
	strategySvc := strategies.NewService(strategies.NewRepository(coreDB, zerolog.Nop()), selectorSvc, fieldSvc, filterSvc, locks, zerolog.Nop())
	ledgerSvc := ledger.NewService(ledger.NewRepository(ledgerDB, zerolog.Nop()), locks, bus, zerolog.Nop())

	repo := NewRepository(ledgerDB, zerolog.Nop())
	jobSvc := NewService(repo, strategySvc, ledgerSvc, locks, bus, testJobCost, zerolog.Nop())

	owner := uuid.New()
	sel, err := selectorSvc.Create(owner, "row", "//tr", selectors.VisibilityPrivate)
	require.NoError(t, err)
	strategy, err := strategySvc.Create(owner, "daily crawl")
	require.NoError(t, err)
	_, err = strategySvc.AddSelector(strategy.ID, sel.ID, owner)
	require.NoError(t, err)

	return &testEnv{
		jobs:       jobSvc,
		repo:       repo,
		strategies: strategySvc,
		ledger:     ledgerSvc,
		events:     bus,
		executor:   &stubExecutor{},
		owner:      owner,
		strategy:   strategy,
		selector:   sel,
	}
}

func (env *testEnv) deposit(t *testing.T, amount int64) {
	t.Helper()
	_, err := env.ledger.Deposit(env.owner, amount, "")
	require.NoError(t, err)
}

func TestCreateDebitsAndQueues(t *testing.T) {
	env := newTestEnv(t)
	env.deposit(t, 100)

	job, err := env.jobs.Create(env.strategy.ID, env.owner, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)

	balance, err := env.ledger.Balance(env.owner)
	require.NoError(t, err)
	assert.Equal(t, int64(100-testJobCost), balance)

	transactions, err := env.ledger.List(env.owner)
	require.NoError(t, err)
	require.Len(t, transactions, 2)
	assert.Equal(t, int64(-testJobCost), transactions[0].Amount)
	assert.Equal(t, ledger.KeyJobExecution, transactions[0].Key)
	assert.Contains(t, transactions[0].Meta, job.ID.String())
}

func TestCreateInsufficientFundsIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	env.deposit(t, testJobCost-1)

	_, err := env.jobs.Create(env.strategy.ID, env.owner, "")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// Neither the job nor its debit survived the rollback.
	list, err := env.jobs.List(env.owner)
	require.NoError(t, err)
	assert.Empty(t, list)

	transactions, err := env.ledger.List(env.owner)
	require.NoError(t, err)
	assert.Len(t, transactions, 1)
}

func TestCreateRequestIDIdempotency(t *testing.T) {
	env := newTestEnv(t)
	env.deposit(t, 100)

	first, err := env.jobs.Create(env.strategy.ID, env.owner, "req-1")
	require.NoError(t, err)

	// The repeat returns the original job and debits nothing.
	second, err := env.jobs.Create(env.strategy.ID, env.owner, "req-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	balance, err := env.ledger.Balance(env.owner)
	require.NoError(t, err)
	assert.Equal(t, int64(100-testJobCost), balance)

	list, err := env.jobs.List(env.owner)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateUnknownStrategy(t *testing.T) {
	env := newTestEnv(t)
	env.deposit(t, 100)

	_, err := env.jobs.Create(uuid.New(), env.owner, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Someone else's strategy is equally invisible, and nothing is charged.
	_, err = env.jobs.Create(env.strategy.ID, uuid.New(), "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	balance, err := env.ledger.Balance(env.owner)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestSnapshotFreezesStrategy(t *testing.T) {
	env := newTestEnv(t)
	env.deposit(t, 100)

	job, err := env.jobs.Create(env.strategy.ID, env.owner, "")
	require.NoError(t, err)

	// Detach the selector after submission.
	require.NoError(t, env.strategies.RemoveSelector(env.strategy.ID, env.selector.ID, env.owner))

	stored, err := env.jobs.Get(job.ID, env.owner)
	require.NoError(t, err)
	snapshot, err := stored.DecodeSnapshot()
	require.NoError(t, err)
	require.Len(t, snapshot.Selectors, 1)
	assert.Equal(t, env.selector.ID, snapshot.Selectors[0].ID)
}

func TestListNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	env.deposit(t, 100)

	first, err := env.jobs.Create(env.strategy.ID, env.owner, "")
	require.NoError(t, err)
	second, err := env.jobs.Create(env.strategy.ID, env.owner, "")
	require.NoError(t, err)

	list, err := env.jobs.List(env.owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestGetIsOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	env.deposit(t, 100)

	job, err := env.jobs.Create(env.strategy.ID, env.owner, "")
	require.NoError(t, err)

	_, err = env.jobs.Get(job.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransitionMonotonicity(t *testing.T) {
	env := newTestEnv(t)
	env.deposit(t, 100)

	job, err := env.jobs.Create(env.strategy.ID, env.owner, "")
	require.NoError(t, err)

	// Pending cannot jump straight to a terminal state.
	assert.ErrorIs(t, env.repo.Transition(job.ID, StatusPending, StatusSucceeded, ""), domain.ErrConflict)

	require.NoError(t, env.repo.Transition(job.ID, StatusPending, StatusRunning, ""))

	// The claim only works once.
	assert.ErrorIs(t, env.repo.Transition(job.ID, StatusPending, StatusRunning, ""), domain.ErrConflict)

	require.NoError(t, env.repo.Transition(job.ID, StatusRunning, StatusSucceeded, ""))

	// Terminal states never regress.
	assert.ErrorIs(t, env.repo.Transition(job.ID, StatusSucceeded, StatusFailed, ""), domain.ErrConflict)
	assert.ErrorIs(t, env.repo.Transition(job.ID, StatusRunning, StatusFailed, ""), domain.ErrConflict)
}

func TestRunnerExecutesPendingJob(t *testing.T) {
	env := newTestEnv(t)
	env.deposit(t, 100)

	var statuses []string
	env.events.Subscribe(events.JobStatusChanged, func(e *events.Event) {
		statuses = append(statuses, e.Data["status"].(string))
	})

	job, err := env.jobs.Create(env.strategy.ID, env.owner, "")
	require.NoError(t, err)

	runner := NewRunner(env.repo, env.executor, env.events, time.Hour, zerolog.Nop())
	runner.runOne(job)

	stored, err := env.jobs.Get(job.ID, env.owner)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, stored.Status)
	assert.Empty(t, stored.Error)
	assert.Equal(t, 1, env.executor.callCount())
	assert.Equal(t, []string{"running", "succeeded"}, statuses)
}

func TestRunnerRecordsFailure(t *testing.T) {
	env := newTestEnv(t)
	env.deposit(t, 100)
	env.executor.err = errors.New("extractor unreachable")

	job, err := env.jobs.Create(env.strategy.ID, env.owner, "")
	require.NoError(t, err)

	runner := NewRunner(env.repo, env.executor, env.events, time.Hour, zerolog.Nop())
	runner.runOne(job)

	stored, err := env.jobs.Get(job.ID, env.owner)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Equal(t, "extractor unreachable", stored.Error)
}

func TestRunnerFailsCorruptSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.deposit(t, 100)

	job, err := env.jobs.Create(env.strategy.ID, env.owner, "")
	require.NoError(t, err)

	// Corrupt the stored snapshot behind the service's back.
	_, err = env.repo.db.Exec(`UPDATE jobs SET snapshot = X'00' WHERE id = ?`, job.ID.String())
	require.NoError(t, err)
	job, err = env.jobs.Get(job.ID, env.owner)
	require.NoError(t, err)

	runner := NewRunner(env.repo, env.executor, env.events, time.Hour, zerolog.Nop())
	runner.runOne(job)

	stored, err := env.jobs.Get(job.ID, env.owner)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "corrupt strategy snapshot")
	assert.Equal(t, 0, env.executor.callCount())
}

func TestRunnerTriggerDrainsQueue(t *testing.T) {
	env := newTestEnv(t)
	env.deposit(t, 100)

	runner := NewRunner(env.repo, env.executor, env.events, time.Hour, zerolog.Nop())
	env.jobs.SetRunner(runner)
	go runner.Run()
	defer runner.Stop()

	job, err := env.jobs.Create(env.strategy.ID, env.owner, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored, err := env.jobs.Get(job.ID, env.owner)
		return err == nil && stored.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	stored, err := env.jobs.Get(job.ID, env.owner)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, stored.Status)
}

func TestRunnerSkipsClaimedJob(t *testing.T) {
	env := newTestEnv(t)
	env.deposit(t, 100)

	job, err := env.jobs.Create(env.strategy.ID, env.owner, "")
	require.NoError(t, err)

	// Another runner already claimed the job.
	require.NoError(t, env.repo.Transition(job.ID, StatusPending, StatusRunning, ""))

	runner := NewRunner(env.repo, env.executor, env.events, time.Hour, zerolog.Nop())
	runner.runOne(job)

	assert.Equal(t, 0, env.executor.callCount())
	stored, err := env.jobs.Get(job.ID, env.owner)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, stored.Status)
}
