package jobs

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/domain"
)

// Repository handles job rows in ledger.db. Jobs share the database with
// the token ledger so an insert and its debit commit in one transaction.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new job repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "jobs").Logger(),
	}
}

// InsertTx inserts a job inside an open transaction.
func (r *Repository) InsertTx(tx *sql.Tx, j *Job) error {
	_, err := tx.Exec(`
		INSERT INTO jobs (id, user_id, strategy_id, status, snapshot, error, request_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID.String(), j.UserID.String(), j.StrategyID.String(), string(j.Status), j.Snapshot, nullable(j.Error),
		nullable(j.RequestID), j.CreatedAt.Unix(), j.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// Get retrieves a job owned by the account.
func (r *Repository) Get(id, userID uuid.UUID) (*Job, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, strategy_id, status, snapshot, error, request_id, created_at, updated_at
		FROM jobs
		WHERE id = ? AND user_id = ?
	`, id.String(), userID.String())

	return scanJob(row.Scan)
}

// GetByRequestID retrieves the job previously submitted with the request id.
func (r *Repository) GetByRequestID(userID uuid.UUID, requestID string) (*Job, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, strategy_id, status, snapshot, error, request_id, created_at, updated_at
		FROM jobs
		WHERE user_id = ? AND request_id = ?
	`, userID.String(), requestID)

	return scanJob(row.Scan)
}

// List returns the account's jobs newest first.
func (r *Repository) List(userID uuid.UUID) ([]*Job, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, strategy_id, status, snapshot, error, request_id, created_at, updated_at
		FROM jobs
		WHERE user_id = ?
		ORDER BY rowid DESC
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ListPending returns all pending jobs oldest first, across accounts. The
// runner drains this queue.
func (r *Repository) ListPending() ([]*Job, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, strategy_id, status, snapshot, error, request_id, created_at, updated_at
		FROM jobs
		WHERE status = 'pending'
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Transition moves a job from one status to the next. The WHERE clause
// enforces monotonicity: a row that already left `from` is not touched, and
// the caller sees domain.ErrConflict.
func (r *Repository) Transition(id uuid.UUID, from, to Status, jobErr string) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("illegal transition %s -> %s: %w", from, to, domain.ErrConflict)
	}

	res, err := r.db.Exec(`
		UPDATE jobs SET status = ?, error = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), nullable(jobErr), time.Now().Unix(), id.String(), string(from))
	if err != nil {
		return fmt.Errorf("failed to transition job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s is not %s: %w", id, from, domain.ErrConflict)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func scanJob(scan func(dest ...interface{}) error) (*Job, error) {
	var (
		j                      Job
		id, userID, strategyID string
		status                 string
		jobErr, requestID      sql.NullString
		createdAt, updatedAt   int64
	)

	err := scan(&id, &userID, &strategyID, &status, &j.Snapshot, &jobErr, &requestID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	j.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt job id %q: %w", id, err)
	}
	j.UserID, err = uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("corrupt job user id %q: %w", userID, err)
	}
	j.StrategyID, err = uuid.Parse(strategyID)
	if err != nil {
		return nil, fmt.Errorf("corrupt job strategy id %q: %w", strategyID, err)
	}
	j.Status = Status(status)
	j.Error = jobErr.String
	j.RequestID = requestID.String
	j.CreatedAt = time.Unix(createdAt, 0)
	j.UpdatedAt = time.Unix(updatedAt, 0)
	return &j, nil
}
