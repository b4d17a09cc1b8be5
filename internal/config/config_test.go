package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alvmarrod/index-weaver/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{"input_file": "urls.txt", "key_files": ["indexing.json"]}`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "urls.txt", cfg.InputFile)
	assert.Equal(t, 200, cfg.URLLimitPerAccount)
	assert.Equal(t, 30000, cfg.RequestTimeoutMs)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 1000, cfg.RetryDelayMs)
	assert.Equal(t, 100, cfg.SubmitDelayMs)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.Equal(t, "indexer.db", cfg.HistoryDBPath)
	assert.Equal(t, "metrics.json", cfg.MetricsPath)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{
		"input_file": "batch.txt",
		"key_files": ["a.json", "b.json"],
		"url_limit_per_account": 50,
		"request_timeout_ms": 10000,
		"submit_delay_ms": 250,
		"output_dir": "out"
	}`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.json", "b.json"}, cfg.KeyFiles)
	assert.Equal(t, 50, cfg.URLLimitPerAccount)
	assert.Equal(t, 10000, cfg.RequestTimeoutMs)
	assert.Equal(t, 250, cfg.SubmitDelayMs)
	assert.Equal(t, "out", cfg.OutputDir)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"missing input_file", `{"key_files": ["a.json"]}`},
		{"missing key_files", `{"input_file": "urls.txt"}`},
		{"quota below one", `{"input_file": "urls.txt", "key_files": ["a.json"], "url_limit_per_account": -1}`},
		{"timeout too small", `{"input_file": "urls.txt", "key_files": ["a.json"], "request_timeout_ms": 500}`},
		{"malformed JSON", `{"input_file": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := config.LoadConfig(path)
			assert.Error(t, err)
		})
	}
}
