package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultPath returns ~/.pricefed/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".pricefed", "config.yaml"), nil
}

// LoadConfigFile loads configuration from ~/.pricefed/config.yaml. A missing
// file yields the defaults.
func LoadConfigFile() (*FileConfig, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}

	return Load(path)
}

// Load reads the file at path over the defaults and validates the result.
// A missing file is not an error. Returns error if the file exists but
// cannot be parsed.
func Load(path string) (*FileConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
