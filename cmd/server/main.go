// Package main is the entry point for the Magpie extraction platform backend.
// It wires the registries, the strategy aggregate, the token ledger, and the
// job engine behind a JSON-over-HTTP API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corvidlabs/magpie/internal/auth"
	"github.com/corvidlabs/magpie/internal/config"
	"github.com/corvidlabs/magpie/internal/database"
	"github.com/corvidlabs/magpie/internal/events"
	"github.com/corvidlabs/magpie/internal/locking"
	"github.com/corvidlabs/magpie/internal/modules/fields"
	fieldhandlers "github.com/corvidlabs/magpie/internal/modules/fields/handlers"
	"github.com/corvidlabs/magpie/internal/modules/filters"
	filterhandlers "github.com/corvidlabs/magpie/internal/modules/filters/handlers"
	"github.com/corvidlabs/magpie/internal/modules/jobs"
	jobhandlers "github.com/corvidlabs/magpie/internal/modules/jobs/handlers"
	"github.com/corvidlabs/magpie/internal/modules/ledger"
	ledgerhandlers "github.com/corvidlabs/magpie/internal/modules/ledger/handlers"
	"github.com/corvidlabs/magpie/internal/modules/selectors"
	selectorhandlers "github.com/corvidlabs/magpie/internal/modules/selectors/handlers"
	"github.com/corvidlabs/magpie/internal/modules/strategies"
	strategyhandlers "github.com/corvidlabs/magpie/internal/modules/strategies/handlers"
	"github.com/corvidlabs/magpie/internal/modules/users"
	userhandlers "github.com/corvidlabs/magpie/internal/modules/users/handlers"
	"github.com/corvidlabs/magpie/internal/reliability"
	"github.com/corvidlabs/magpie/internal/scheduler"
	"github.com/corvidlabs/magpie/internal/server"
	"github.com/corvidlabs/magpie/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting Magpie")

	// Two databases: core holds accounts and the registries, ledger holds
	// transactions and jobs so a debit and its job commit together.
	coreDB, err := database.New(database.Config{
		Path:    cfg.CoreDBPath,
		Profile: database.ProfileStandard,
		Name:    "core",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open core database")
	}
	defer coreDB.Close()

	ledgerDB, err := database.New(database.Config{
		Path:    cfg.LedgerDBPath,
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	for _, db := range []*database.DB{coreDB, ledgerDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to migrate database")
		}
	}

	locks := locking.NewManager()
	bus := events.NewBus(log)
	tokens := auth.NewTokens(cfg.AuthSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)

	// Repositories and services.
	userRepo := users.NewRepository(coreDB.Conn(), log)
	userService := users.NewService(userRepo, tokens, log)

	selectorRepo := selectors.NewRepository(coreDB.Conn(), log)
	selectorService := selectors.NewService(selectorRepo, log)

	fieldRepo := fields.NewRepository(coreDB.Conn(), log)
	fieldService := fields.NewService(fieldRepo, selectorService, log)

	filterRepo := filters.NewRepository(coreDB.Conn(), log)
	filterService := filters.NewService(filterRepo, fieldService, log)

	strategyRepo := strategies.NewRepository(coreDB.Conn(), log)
	strategyService := strategies.NewService(strategyRepo, selectorService, fieldService, filterService, locks, log)

	ledgerRepo := ledger.NewRepository(ledgerDB.Conn(), log)
	ledgerService := ledger.NewService(ledgerRepo, locks, bus, log)

	jobRepo := jobs.NewRepository(ledgerDB.Conn(), log)
	jobService := jobs.NewService(jobRepo, strategyService, ledgerService, locks, bus, cfg.JobCostTokens, log)

	var executor jobs.Executor
	if cfg.ExtractorURL != "" {
		executor = jobs.NewHTTPExecutor(cfg.ExtractorURL, log)
	} else {
		log.Warn().Msg("EXTRACTOR_URL not configured, jobs will succeed without extraction")
		executor = jobs.NoopExecutor{}
	}

	runner := jobs.NewRunner(jobRepo, executor, bus, time.Minute, log)
	jobService.SetRunner(runner)
	go runner.Run()
	defer runner.Stop()

	// Scheduled maintenance.
	databases := map[string]*database.DB{
		coreDB.Name():   coreDB,
		ledgerDB.Name(): ledgerDB,
	}

	sched := scheduler.New(log)
	if err := sched.AddJob("30 2 * * *", reliability.NewMaintenanceJob(databases, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register maintenance job")
	}

	if cfg.BackupS3Bucket != "" {
		s3Client, err := reliability.NewS3Client(context.Background(), reliability.S3Config{
			Bucket:    cfg.BackupS3Bucket,
			Endpoint:  cfg.BackupS3Endpoint,
			Region:    cfg.BackupS3Region,
			AccessKey: cfg.BackupS3AccessKey,
			SecretKey: cfg.BackupS3SecretKey,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}

		backupService := reliability.NewBackupService(s3Client, databases, cfg.DataDir, cfg.BackupRetentionDays, log)
		if err := sched.AddJob("0 3 * * *", reliability.NewBackupJob(backupService, locks, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	} else {
		log.Info().Msg("BACKUP_S3_BUCKET not configured, offsite backups disabled")
	}

	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:      log,
		Config:   cfg,
		CoreDB:   coreDB,
		LedgerDB: ledgerDB,
		Tokens:   tokens,
		Events:   bus,
		Handlers: server.Handlers{
			Users:      userhandlers.NewHandler(userService, log),
			Selectors:  selectorhandlers.NewHandler(selectorService, log),
			Fields:     fieldhandlers.NewHandler(fieldService, log),
			Filters:    filterhandlers.NewHandler(filterService, log),
			Strategies: strategyhandlers.NewHandler(strategyService, log),
			Ledger:     ledgerhandlers.NewHandler(ledgerService, log),
			Jobs:       jobhandlers.NewHandler(jobService, log),
		},
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
}
