package jobs

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
	"github.com/corvidlabs/magpie/internal/modules/ledger"
	"github.com/corvidlabs/magpie/internal/modules/strategies"
)

// Service owns job submission and reads. Submission is the only place the
// ledger is debited: the debit transaction and the job row commit together,
// so no job exists without its debit and no debit without its job.
type Service struct {
	repo       *Repository
	strategies *strategies.Service
	ledger     *ledger.Service
	locks      *locking.Manager
	events     *events.Bus
	cost       int64
	runner     *Runner
	log        zerolog.Logger
}

// NewService creates a new job service
func NewService(repo *Repository, strategyService *strategies.Service, ledgerService *ledger.Service, locks *locking.Manager, bus *events.Bus, cost int64, log zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		strategies: strategyService,
		ledger:     ledgerService,
		locks:      locks,
		events:     bus,
		cost:       cost,
		log:        log.With().Str("service", "jobs").Logger(),
	}
}

// SetRunner attaches the runner woken on submission. Wired during startup,
// after the runner is constructed with this service.
func (s *Service) SetRunner(r *Runner) {
	s.runner = r
}

// Cost returns the configured token cost of one job.
func (s *Service) Cost() int64 {
	return s.cost
}

// Create submits the strategy as a new pending job. The strategy's hydrated
// membership is frozen into the job's snapshot at this point; later edits to
// the strategy do not affect the queued job. A repeated requestID returns the
// previously submitted job without debiting again.
func (s *Service) Create(strategyID, userID uuid.UUID, requestID string) (*Job, error) {
	strategy, err := s.strategies.Get(strategyID, userID)
	if err != nil {
		return nil, err
	}

	snapshot, err := EncodeSnapshot(strategy)
	if err != nil {
		return nil, fmt.Errorf("failed to encode strategy snapshot: %w", err)
	}

	now := time.Now()
	job := &Job{
		ID:         uuid.New(),
		UserID:     userID,
		StrategyID: strategyID,
		Status:     StatusPending,
		Snapshot:   snapshot,
		RequestID:  requestID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var existing *Job

	err = s.locks.WithLock(ledger.LockKey(userID), func() error {
		if requestID != "" {
			found, err := s.repo.GetByRequestID(userID, requestID)
			if err == nil {
				existing = found
				return nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}

		return database.WithTransaction(s.repo.db, func(tx *sql.Tx) error {
			meta := fmt.Sprintf(`{"job_id":%q}`, job.ID.String())
			if _, err := s.ledger.DebitTx(tx, userID, s.cost, ledger.KeyJobExecution, meta); err != nil {
				return err
			}
			return s.repo.InsertTx(tx, job)
		})
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	s.events.Emit(events.JobCreated, "jobs", map[string]interface{}{
		"job_id":      job.ID.String(),
		"user_id":     userID.String(),
		"strategy_id": strategyID.String(),
	})

	if s.runner != nil {
		s.runner.Trigger()
	}

	return job, nil
}

// Get retrieves a job owned by the account.
func (s *Service) Get(id, userID uuid.UUID) (*Job, error) {
	return s.repo.Get(id, userID)
}

// List returns the account's jobs newest first.
func (s *Service) List(userID uuid.UUID) ([]*Job, error) {
	return s.repo.List(userID)
}
