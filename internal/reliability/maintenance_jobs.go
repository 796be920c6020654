package reliability

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/database"
	"github.com/corvidlabs/magpie/internal/locking"
)

// MaintenanceJob checkpoints the WAL on every database nightly so the log
// files do not grow without bound.
type MaintenanceJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job.
func NewMaintenanceJob(databases map[string]*database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		log:       log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance job.
func (j *MaintenanceJob) Run() error {
	start := time.Now()

	for name, db := range j.databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			// Not critical, the next checkpoint will catch up.
			j.log.Warn().Str("database", name).Err(err).Msg("WAL checkpoint failed")
		}
	}

	j.log.Info().Dur("duration_ms", time.Since(start)).Msg("Maintenance completed")
	return nil
}

// BackupJob runs the offsite backup and rotation. Guarded by a lock so a
// slow upload never overlaps the next scheduled run.
type BackupJob struct {
	service *BackupService
	locks   *locking.Manager
	log     zerolog.Logger
}

// NewBackupJob creates a new backup job.
func NewBackupJob(service *BackupService, locks *locking.Manager, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service: service,
		locks:   locks,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup job.
func (j *BackupJob) Run() error {
	if err := j.locks.Acquire("backup"); err != nil {
		j.log.Warn().Msg("Previous backup still running, skipping")
		return nil
	}
	defer j.locks.Release("backup")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := j.service.CreateAndUploadBackup(ctx); err != nil {
		return err
	}
	return j.service.RotateOldBackups(ctx)
}
