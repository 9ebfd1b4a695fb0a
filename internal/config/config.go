// Package config provides configuration management for normengine.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application's recognized configuration surface.
type Config struct {
	LLMModel           string
	MaxCycles          int
	DBPath             string
	BaseDir            string
	ParadigmDir        string
	VerifyFiles        bool
	RunMode            string // "SLOW" | "FAST"
	ReconciliationMode string // "PATCH" | "OVERWRITE" | "FILL_GAPS"
	DevMode            bool
	Logging            LoggingConfig
}

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// Load loads the configuration from environment variables.
func Load() (*Config, error) {
	godotenv.Load()
	cfg := &Config{
		LLMModel:           getEnv("NORMENGINE_LLM_MODEL", ""),
		MaxCycles:          getEnvAsInt("NORMENGINE_MAX_CYCLES", 50),
		DBPath:             getEnv("NORMENGINE_DB_PATH", "./normengine.db"),
		BaseDir:            getEnv("NORMENGINE_BASE_DIR", "."),
		ParadigmDir:        getEnv("NORMENGINE_PARADIGM_DIR", ""),
		VerifyFiles:        getEnvAsBool("NORMENGINE_VERIFY_FILES", true),
		RunMode:            getEnv("NORMENGINE_RUN_MODE", "FAST"),
		ReconciliationMode: getEnv("NORMENGINE_RECONCILIATION_MODE", "PATCH"),
		DevMode:            getEnvAsBool("NORMENGINE_DEV_MODE", false),
		Logging: LoggingConfig{
			Level:  getEnv("NORMENGINE_LOG_LEVEL", "info"),
			Format: getEnv("NORMENGINE_LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration against the closed vocabularies
// for run_mode and reconciliation_mode.
func (c *Config) Validate() error {
	if c.MaxCycles < 1 {
		return fmt.Errorf("max_cycles must be at least 1")
	}

	validRunModes := map[string]bool{"SLOW": true, "FAST": true}
	if !validRunModes[c.RunMode] {
		return fmt.Errorf("invalid run_mode: %s (must be SLOW or FAST)", c.RunMode)
	}

	validReconciliationModes := map[string]bool{"PATCH": true, "OVERWRITE": true, "FILL_GAPS": true}
	if !validReconciliationModes[c.ReconciliationMode] {
		return fmt.Errorf("invalid reconciliation_mode: %s (must be PATCH, OVERWRITE, or FILL_GAPS)", c.ReconciliationMode)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}

// Helper functions for environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
