package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/events"
)

// Runner drains the pending job queue. It wakes on Trigger (job submission)
// and on a periodic sweep that catches jobs left pending across restarts.
type Runner struct {
	repo     *Repository
	executor Executor
	events   *events.Bus
	interval time.Duration

	trigger chan struct{}
	stop    chan struct{}
	stopped chan struct{}

	log zerolog.Logger
}

// NewRunner creates a new job runner.
func NewRunner(repo *Repository, executor Executor, bus *events.Bus, sweepInterval time.Duration, log zerolog.Logger) *Runner {
	return &Runner{
		repo:     repo,
		executor: executor,
		events:   bus,
		interval: sweepInterval,
		trigger:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		log:      log.With().Str("component", "job_runner").Logger(),
	}
}

// Run starts the runner loop. This blocks until Stop() is called.
func (r *Runner) Run() {
	defer close(r.stopped)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-r.trigger:
			r.drain()
		case <-ticker.C:
			r.drain()
		}
	}
}

// Stop stops the runner and waits for the loop to exit. A job already
// executing runs to its terminal state first.
func (r *Runner) Stop() {
	close(r.stop)
	<-r.stopped
}

// Trigger wakes the runner to check for work. Non-blocking.
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
		// Trigger already pending
	}
}

func (r *Runner) drain() {
	pending, err := r.repo.ListPending()
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to list pending jobs")
		r.events.EmitError("jobs", err, nil)
		return
	}

	for _, job := range pending {
		select {
		case <-r.stop:
			return
		default:
		}
		r.runOne(job)
	}
}

// runOne drives a single job through its lifecycle. The pending->running
// transition doubles as the claim: if another runner got there first the
// update matches no row and the job is skipped.
func (r *Runner) runOne(job *Job) {
	if err := r.repo.Transition(job.ID, StatusPending, StatusRunning, ""); err != nil {
		r.log.Debug().Err(err).Str("job_id", job.ID.String()).Msg("Job already claimed")
		return
	}
	r.emitStatus(job, StatusRunning, "")

	snapshot, err := job.DecodeSnapshot()
	if err != nil {
		r.finish(job, StatusFailed, "corrupt strategy snapshot: "+err.Error())
		return
	}

	execErr := r.executor.Execute(context.Background(), job, snapshot)
	if execErr != nil {
		r.finish(job, StatusFailed, execErr.Error())
		return
	}
	r.finish(job, StatusSucceeded, "")
}

func (r *Runner) finish(job *Job, status Status, jobErr string) {
	if err := r.repo.Transition(job.ID, StatusRunning, status, jobErr); err != nil {
		r.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("Failed to finish job")
		r.events.EmitError("jobs", err, map[string]interface{}{"job_id": job.ID.String()})
		return
	}

	event := r.log.Info()
	if status == StatusFailed {
		event = r.log.Warn().Str("error", jobErr)
	}
	event.Str("job_id", job.ID.String()).Str("status", string(status)).Msg("Job finished")

	r.emitStatus(job, status, jobErr)
}

func (r *Runner) emitStatus(job *Job, status Status, jobErr string) {
	data := map[string]interface{}{
		"job_id":      job.ID.String(),
		"user_id":     job.UserID.String(),
		"strategy_id": job.StrategyID.String(),
		"status":      string(status),
	}
	if jobErr != "" {
		data["error"] = jobErr
	}
	r.events.Emit(events.JobStatusChanged, "jobs", data)
}
