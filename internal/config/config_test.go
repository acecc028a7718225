package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "sponsorskip.db", cfg.DatabasePath)
	assert.Equal(t, "https://sponsor.ajay.app", cfg.LookupBaseURL)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 0.5, cfg.SkipEpsilon)
	assert.Equal(t, 2*time.Second, cfg.NavCheckInterval)
	assert.Equal(t, 20, cfg.AttachAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.AttachInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"ListenAddr": ":9090",
		"LookupBaseURL": "http://localhost:8081",
		"CacheTTL": "30m",
		"AttachAttempts": 3,
		"LogLevel": "debug"
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "http://localhost:8081", cfg.LookupBaseURL)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 3, cfg.AttachAttempts)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Untouched fields keep their defaults.
	assert.Equal(t, "sponsorskip.db", cfg.DatabasePath)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 0.5, cfg.SkipEpsilon)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `{"PollInterval": "soon"}`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PollInterval")
}

func TestLoadConfig_NonPositiveDuration(t *testing.T) {
	path := writeConfig(t, `{"CacheTTL": "-1h"}`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestLoadConfig_MalformedJSON(t *testing.T) {
	path := writeConfig(t, `{`)

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
