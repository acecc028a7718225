package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config holds the fully processed application configuration.
type Config struct {
	// ListenAddr is the address the HTTP API binds to.
	ListenAddr string
	// DatabasePath is the sqlite database file backing persisted settings and counters.
	DatabasePath string
	// LookupBaseURL is the base URL of the remote segment lookup service.
	LookupBaseURL string
	// UserAgent is sent on every lookup request. Empty means the Go default.
	UserAgent string

	// CacheTTL is the lifetime of a resolver cache entry. Entries older than
	// this are treated as absent.
	CacheTTL time.Duration
	// PollInterval is the playback-position polling cadence of an armed
	// monitor. A tunable, not a hidden constant: it should roughly match the
	// timeline update cadence of the player being monitored.
	PollInterval time.Duration
	// SkipEpsilon is the buffer before a segment's end inside which a tick no
	// longer triggers, preventing an immediate re-trigger at the boundary.
	SkipEpsilon float64
	// NavCheckInterval is the fallback cadence for detecting video changes
	// when no navigation signal is delivered.
	NavCheckInterval time.Duration
	// AttachAttempts bounds how often a monitor retries acquiring the player
	// handle before giving up silently for that fetch.
	AttachAttempts int
	// AttachInterval is the fixed delay between attach attempts.
	AttachInterval time.Duration

	LogLevel string
}

// rawConfig is the intermediate structure that maps directly to the JSON file.
// Durations are expressed as Go duration strings ("500ms", "1h").
type rawConfig struct {
	ListenAddr       string  `json:"ListenAddr"`
	DatabasePath     string  `json:"DatabasePath"`
	LookupBaseURL    string  `json:"LookupBaseURL"`
	UserAgent        string  `json:"UserAgent"`
	CacheTTL         string  `json:"CacheTTL"`
	PollInterval     string  `json:"PollInterval"`
	SkipEpsilon      float64 `json:"SkipEpsilon"`
	NavCheckInterval string  `json:"NavCheckInterval"`
	AttachAttempts   int     `json:"AttachAttempts"`
	AttachInterval   string  `json:"AttachInterval"`
	LogLevel         string  `json:"LogLevel"`
}

// Default returns the built-in configuration used when no config file is given.
func Default() *Config {
	return &Config{
		ListenAddr:       ":8080",
		DatabasePath:     "sponsorskip.db",
		LookupBaseURL:    "https://sponsor.ajay.app",
		CacheTTL:         time.Hour,
		PollInterval:     250 * time.Millisecond,
		SkipEpsilon:      0.5,
		NavCheckInterval: 2 * time.Second,
		AttachAttempts:   20,
		AttachInterval:   500 * time.Millisecond,
		LogLevel:         "info",
	}
}

// LoadConfig reads and parses the configuration file from the given path,
// overlaying it on the defaults. Fields left out of the file keep their
// default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file at %s: %w", path, err)
	}

	var rawCfg rawConfig
	if err := json.Unmarshal(data, &rawCfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config JSON: %w", err)
	}

	cfg := Default()
	if rawCfg.ListenAddr != "" {
		cfg.ListenAddr = rawCfg.ListenAddr
	}
	if rawCfg.DatabasePath != "" {
		cfg.DatabasePath = rawCfg.DatabasePath
	}
	if rawCfg.LookupBaseURL != "" {
		cfg.LookupBaseURL = rawCfg.LookupBaseURL
	}
	if rawCfg.UserAgent != "" {
		cfg.UserAgent = rawCfg.UserAgent
	}
	if rawCfg.SkipEpsilon > 0 {
		cfg.SkipEpsilon = rawCfg.SkipEpsilon
	}
	if rawCfg.AttachAttempts > 0 {
		cfg.AttachAttempts = rawCfg.AttachAttempts
	}
	if rawCfg.LogLevel != "" {
		cfg.LogLevel = rawCfg.LogLevel
	}

	for _, d := range []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{rawCfg.CacheTTL, "CacheTTL", &cfg.CacheTTL},
		{rawCfg.PollInterval, "PollInterval", &cfg.PollInterval},
		{rawCfg.NavCheckInterval, "NavCheckInterval", &cfg.NavCheckInterval},
		{rawCfg.AttachInterval, "AttachInterval", &cfg.AttachInterval},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid duration for %s: %w", d.name, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("duration for %s must be positive, got %q", d.name, d.raw)
		}
		*d.dst = parsed
	}

	return cfg, nil
}
