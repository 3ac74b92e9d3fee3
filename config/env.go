package config

import (
	"os"
	"strconv"
	"time"
)

// Environment variables read by ApplyEnv.
const (
	EnvConfigPath    = "PRICEFED_CONFIG"
	EnvStorageType   = "PRICEFED_STORAGE_TYPE"
	EnvStorageDSN    = "PRICEFED_DSN"
	EnvRegion        = "PRICEFED_REGION"
	EnvMaxPages      = "PRICEFED_MAX_PAGES"
	EnvBaseURL       = "PRICEFED_BASE_URL"
	EnvStaleness     = "PRICEFED_STALENESS_THRESHOLD"
	EnvCheckInterval = "PRICEFED_CHECK_INTERVAL"
	EnvArchiveDir    = "PRICEFED_ARCHIVE_DIR"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration parses a duration from environment variable or returns default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvInt parses an int from environment variable or returns default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// PathFromEnv returns PRICEFED_CONFIG, or ~/.pricefed/config.yaml.
func PathFromEnv() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}
	return DefaultPath()
}

// ApplyEnv overlays PRICEFED_* environment variables on cfg. Unparseable
// values are ignored.
func ApplyEnv(cfg *FileConfig) {
	cfg.Storage.Type = getEnv(EnvStorageType, cfg.Storage.Type)
	cfg.Storage.DSN = getEnv(EnvStorageDSN, cfg.Storage.DSN)
	cfg.Source.BaseURL = getEnv(EnvBaseURL, cfg.Source.BaseURL)
	cfg.Source.Region = getEnvInt(EnvRegion, cfg.Source.Region)
	cfg.Source.MaxPages = getEnvInt(EnvMaxPages, cfg.Source.MaxPages)
	cfg.Update.StalenessThreshold = getEnvDuration(EnvStaleness, cfg.Update.StalenessThreshold)
	cfg.Update.CheckInterval = getEnvDuration(EnvCheckInterval, cfg.Update.CheckInterval)
	cfg.Archive.Dir = getEnv(EnvArchiveDir, cfg.Archive.Dir)
}

// LoadFromEnv loads the file named by PRICEFED_CONFIG (or the default path),
// overlays the environment and validates the result.
func LoadFromEnv() (*FileConfig, error) {
	path, err := PathFromEnv()
	if err != nil {
		return nil, err
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
