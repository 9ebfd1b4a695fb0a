package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var normengineEnvKeys = []string{
	"NORMENGINE_LLM_MODEL",
	"NORMENGINE_MAX_CYCLES",
	"NORMENGINE_DB_PATH",
	"NORMENGINE_BASE_DIR",
	"NORMENGINE_PARADIGM_DIR",
	"NORMENGINE_VERIFY_FILES",
	"NORMENGINE_RUN_MODE",
	"NORMENGINE_RECONCILIATION_MODE",
	"NORMENGINE_DEV_MODE",
	"NORMENGINE_LOG_LEVEL",
	"NORMENGINE_LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range normengineEnvKeys {
		os.Unsetenv(k)
	}
}

func TestConfig_Load_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "", cfg.LLMModel)
	assert.Equal(t, 50, cfg.MaxCycles)
	assert.Equal(t, "./normengine.db", cfg.DBPath)
	assert.Equal(t, ".", cfg.BaseDir)
	assert.Equal(t, "", cfg.ParadigmDir)
	assert.True(t, cfg.VerifyFiles)
	assert.Equal(t, "FAST", cfg.RunMode)
	assert.Equal(t, "PATCH", cfg.ReconciliationMode)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestConfig_Load_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("NORMENGINE_LLM_MODEL", "gpt-4")
	t.Setenv("NORMENGINE_MAX_CYCLES", "10")
	t.Setenv("NORMENGINE_DB_PATH", "/tmp/run.db")
	t.Setenv("NORMENGINE_BASE_DIR", "/runs/1")
	t.Setenv("NORMENGINE_PARADIGM_DIR", "/paradigms")
	t.Setenv("NORMENGINE_VERIFY_FILES", "false")
	t.Setenv("NORMENGINE_RUN_MODE", "SLOW")
	t.Setenv("NORMENGINE_RECONCILIATION_MODE", "OVERWRITE")
	t.Setenv("NORMENGINE_DEV_MODE", "true")
	t.Setenv("NORMENGINE_LOG_LEVEL", "debug")
	t.Setenv("NORMENGINE_LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4", cfg.LLMModel)
	assert.Equal(t, 10, cfg.MaxCycles)
	assert.Equal(t, "/tmp/run.db", cfg.DBPath)
	assert.Equal(t, "/runs/1", cfg.BaseDir)
	assert.Equal(t, "/paradigms", cfg.ParadigmDir)
	assert.False(t, cfg.VerifyFiles)
	assert.Equal(t, "SLOW", cfg.RunMode)
	assert.Equal(t, "OVERWRITE", cfg.ReconciliationMode)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestConfig_Load_InvalidMaxCycles(t *testing.T) {
	clearEnv(t)
	t.Setenv("NORMENGINE_MAX_CYCLES", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_Load_InvalidRunMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("NORMENGINE_RUN_MODE", "TURBO")

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_Load_InvalidReconciliationMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("NORMENGINE_RECONCILIATION_MODE", "MERGE")

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_Load_InvalidLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("NORMENGINE_LOG_LEVEL", "verbose")

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_Load_InvalidLogFormat(t *testing.T) {
	clearEnv(t)
	t.Setenv("NORMENGINE_LOG_FORMAT", "xml")

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_Validate_AcceptsAllReconciliationModes(t *testing.T) {
	for _, mode := range []string{"PATCH", "OVERWRITE", "FILL_GAPS"} {
		cfg := &Config{
			MaxCycles:          1,
			RunMode:            "FAST",
			ReconciliationMode: mode,
			Logging:            LoggingConfig{Level: "info", Format: "json"},
		}
		assert.NoError(t, cfg.Validate(), mode)
	}
}

func TestConfig_Validate_RejectsBadMaxCycles(t *testing.T) {
	cfg := &Config{
		MaxCycles:          0,
		RunMode:            "FAST",
		ReconciliationMode: "PATCH",
		Logging:            LoggingConfig{Level: "info", Format: "json"},
	}
	assert.Error(t, cfg.Validate())
}
