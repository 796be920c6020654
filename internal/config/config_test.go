package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "./data/core.db", cfg.CoreDBPath)
	assert.Equal(t, "./data/ledger.db", cfg.LedgerDBPath)
	assert.Equal(t, 24, cfg.TokenTTLHours)
	assert.Equal(t, int64(10), cfg.JobCostTokens)
	assert.Equal(t, 30, cfg.BackupRetentionDays)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTH_SECRET", "test-secret")
	t.Setenv("PORT", "9090")
	t.Setenv("JOB_COST_TOKENS", "25")
	t.Setenv("DATA_DIR", "/var/lib/magpie")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, int64(25), cfg.JobCostTokens)
	assert.Equal(t, "/var/lib/magpie/core.db", cfg.CoreDBPath)
}

func TestValidateRequiresAuthSecret(t *testing.T) {
	cfg := &Config{JobCostTokens: 10}
	assert.Error(t, cfg.Validate())

	cfg.AuthSecret = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestValidateBackupCredentials(t *testing.T) {
	cfg := &Config{
		AuthSecret:     "secret",
		JobCostTokens:  10,
		BackupS3Bucket: "backups",
	}
	assert.Error(t, cfg.Validate())

	cfg.BackupS3AccessKey = "key"
	cfg.BackupS3SecretKey = "secret"
	assert.NoError(t, cfg.Validate())
}
