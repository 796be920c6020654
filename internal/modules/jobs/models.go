// Package jobs runs strategies as asynchronous extraction jobs. A job is
// created in pending together with its debit, picked up by the runner, and
// driven to a terminal status by the execution backend's outcome.
package jobs

import (
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/corvidlabs/magpie/internal/modules/strategies"
)

// Status is the job lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// CanTransition reports whether s -> next is a legal transition. The
// machine is strictly forward: pending -> running -> succeeded|failed.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusSucceeded || next == StatusFailed
	}
	return false
}

// Job is one strategy execution. Snapshot freezes the strategy's hydrated
// membership at submission time, so later edits to the strategy never change
// what a queued job executes.
type Job struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	StrategyID uuid.UUID `json:"strategy_id"`
	Status     Status    `json:"status"`
	Snapshot   []byte    `json:"-"`
	Error      string    `json:"error,omitempty"`
	RequestID  string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DecodeSnapshot unpacks the frozen strategy membership.
func (j *Job) DecodeSnapshot() (*strategies.Strategy, error) {
	var s strategies.Strategy
	if err := msgpack.Unmarshal(j.Snapshot, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// EncodeSnapshot packs a hydrated strategy for storage on the job row.
func EncodeSnapshot(s *strategies.Strategy) ([]byte, error) {
	return msgpack.Marshal(s)
}
