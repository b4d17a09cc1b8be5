package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds all runtime configuration parameters
type Config struct {
	InputFile          string   `json:"input_file"`
	KeyFiles           []string `json:"key_files"`
	URLLimitPerAccount int      `json:"url_limit_per_account"`
	RequestTimeoutMs   int      `json:"request_timeout_ms"`
	RetryAttempts      int      `json:"retry_attempts"`
	RetryDelayMs       int      `json:"retry_delay_ms"`
	SubmitDelayMs      int      `json:"submit_delay_ms"`
	OutputDir          string   `json:"output_dir"`
	LogDir             string   `json:"log_dir"`
	HistoryDBPath      string   `json:"history_db_path"`
	MetricsPath        string   `json:"metrics_path"`
}

// LoadConfig reads and validates configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg Config
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.URLLimitPerAccount == 0 {
		cfg.URLLimitPerAccount = 200
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 30000
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelayMs == 0 {
		cfg.RetryDelayMs = 1000
	}
	if cfg.SubmitDelayMs == 0 {
		cfg.SubmitDelayMs = 100
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "."
	}
	if cfg.HistoryDBPath == "" {
		cfg.HistoryDBPath = "indexer.db"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "metrics.json"
	}
}

// validate checks that required fields are present and values are sensible
func validate(cfg *Config) error {
	if cfg.InputFile == "" {
		return fmt.Errorf("input_file is required")
	}
	if len(cfg.KeyFiles) == 0 {
		return fmt.Errorf("key_files must list at least one service account key")
	}
	if cfg.URLLimitPerAccount < 1 {
		return fmt.Errorf("url_limit_per_account must be >= 1")
	}
	if cfg.RequestTimeoutMs < 1000 {
		return fmt.Errorf("request_timeout_ms must be >= 1000")
	}
	if cfg.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must be >= 0")
	}
	return nil
}
