// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port    int
	DevMode bool

	DataDir      string
	CoreDBPath   string
	LedgerDBPath string

	// AuthSecret signs bearer tokens (HS256). Required.
	AuthSecret string
	// TokenTTLHours is the bearer token lifetime.
	TokenTTLHours int

	// JobCostTokens is the ledger debit charged per submitted job.
	JobCostTokens int64
	// ExtractorURL is the extraction backend. When empty, jobs are executed
	// by the local no-op executor (development only).
	ExtractorURL string

	// Offsite backup (S3-compatible storage). Backups are disabled unless
	// BackupS3Bucket is set.
	BackupS3Bucket      string
	BackupS3Endpoint    string
	BackupS3Region      string
	BackupS3AccessKey   string
	BackupS3SecretKey   string
	BackupRetentionDays int

	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")

	cfg := &Config{
		Port:    getEnvAsInt("PORT", 8080),
		DevMode: getEnvAsBool("DEV_MODE", false),

		DataDir:      dataDir,
		CoreDBPath:   getEnv("CORE_DB_PATH", dataDir+"/core.db"),
		LedgerDBPath: getEnv("LEDGER_DB_PATH", dataDir+"/ledger.db"),

		AuthSecret:    getEnv("AUTH_SECRET", ""),
		TokenTTLHours: getEnvAsInt("TOKEN_TTL_HOURS", 24),

		JobCostTokens: int64(getEnvAsInt("JOB_COST_TOKENS", 10)),
		ExtractorURL:  getEnv("EXTRACTOR_URL", ""),

		BackupS3Bucket:      getEnv("BACKUP_S3_BUCKET", ""),
		BackupS3Endpoint:    getEnv("BACKUP_S3_ENDPOINT", ""),
		BackupS3Region:      getEnv("BACKUP_S3_REGION", "auto"),
		BackupS3AccessKey:   getEnv("BACKUP_S3_ACCESS_KEY", ""),
		BackupS3SecretKey:   getEnv("BACKUP_S3_SECRET_KEY", ""),
		BackupRetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required")
	}
	if c.JobCostTokens <= 0 {
		return fmt.Errorf("JOB_COST_TOKENS must be positive")
	}
	if c.BackupS3Bucket != "" {
		if c.BackupS3AccessKey == "" || c.BackupS3SecretKey == "" {
			return fmt.Errorf("BACKUP_S3_ACCESS_KEY and BACKUP_S3_SECRET_KEY are required when BACKUP_S3_BUCKET is set")
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
