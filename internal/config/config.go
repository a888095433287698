// Package config defines service configuration and its defaults.
//
// Values are layered by Load: defaults from New, then an optional YAML file,
// then an optional .env file, then GRADECAST_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/gradecast/internal/adapters/repository"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// BatchThreshold is the pass mark for uploaded batches.
	BatchThreshold float64 `koanf:"batch_threshold"`

	// ManualThreshold is the pass mark for single manual predictions.
	ManualThreshold float64 `koanf:"manual_threshold"`

	// Confidence bounds and the width of the random perturbation.
	ConfidenceMin    float64 `koanf:"confidence_min"`
	ConfidenceMax    float64 `koanf:"confidence_max"`
	ConfidenceJitter float64 `koanf:"confidence_jitter"`

	// StrictRanges drops rows whose values fall outside the documented domains.
	StrictRanges bool `koanf:"strict_ranges"`

	// MaxUploadBytes caps the size of an uploaded batch file.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// Primary store.
	StoreDriver    string `koanf:"store_driver"`
	StoreDSN       string `koanf:"store_dsn"`
	StoreDatabase  string `koanf:"store_database"`
	StoreTimeoutMS int    `koanf:"store_timeout_ms"`

	// Spreadsheet mirror.
	MirrorEnabled       bool    `koanf:"mirror_enabled"`
	MirrorAPIKey        string  `koanf:"mirror_api_key"`
	MirrorSheetID       string  `koanf:"mirror_sheet_id"`
	MirrorRange         string  `koanf:"mirror_range"`
	MirrorBaseURL       string  `koanf:"mirror_base_url"`
	MirrorTimeoutMS     int     `koanf:"mirror_timeout_ms"`
	MirrorRetryAttempts int     `koanf:"mirror_retry_attempts"`
	MirrorRatePerSec    float64 `koanf:"mirror_rate_per_sec"`

	// Mirror sync worker pool.
	SyncWorkers       int `koanf:"sync_workers"`
	SyncQueueSize     int `koanf:"sync_queue_size"`
	SyncJoinTimeoutMS int `koanf:"sync_join_timeout_ms"`

	// CORSAllowedOrigins lists origins answered by the CORS preflight.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		BatchThreshold:      60,
		ManualThreshold:     55,
		ConfidenceMin:       65,
		ConfidenceMax:       95,
		ConfidenceJitter:    10,
		StrictRanges:        false,
		MaxUploadBytes:      10 << 20,
		StoreDriver:         repository.DriverSQLite,
		StoreDSN:            "gradecast.db",
		StoreDatabase:       "gradecast",
		StoreTimeoutMS:      10_000,
		MirrorEnabled:       true,
		MirrorRange:         "Sheet1!A:I",
		MirrorBaseURL:       "https://sheets.googleapis.com",
		MirrorTimeoutMS:     10_000,
		MirrorRetryAttempts: 3,
		MirrorRatePerSec:    5,
		SyncWorkers:         4,
		SyncQueueSize:       10_000,
		SyncJoinTimeoutMS:   0,
		CORSAllowedOrigins:  []string{"*"},
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.ConfidenceMin > c.ConfidenceMax:
		return fmt.Errorf("%w: confidence_min %.2f exceeds confidence_max %.2f", ErrInvalidConfig, c.ConfidenceMin, c.ConfidenceMax)
	case c.ConfidenceJitter < 0:
		return fmt.Errorf("%w: confidence_jitter must not be negative", ErrInvalidConfig)
	case !repository.KnownDriver(c.StoreDriver):
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalidConfig)
	case c.SyncQueueSize <= 0:
		return fmt.Errorf("%w: sync_queue_size must be positive", ErrInvalidConfig)
	case c.SyncJoinTimeoutMS < 0:
		return fmt.Errorf("%w: sync_join_timeout_ms must not be negative", ErrInvalidConfig)
	}
	return nil
}

// MirrorConfigured reports whether the mirror can be used.
func (c *Config) MirrorConfigured() bool {
	return c.MirrorEnabled && c.MirrorAPIKey != "" && c.MirrorSheetID != ""
}

// StoreTimeout returns the store call timeout.
func (c *Config) StoreTimeout() time.Duration { return ms(c.StoreTimeoutMS) }

// MirrorTimeout returns the per-append timeout.
func (c *Config) MirrorTimeout() time.Duration { return ms(c.MirrorTimeoutMS) }

// SyncJoinTimeout returns how long a batch waits for its mirror jobs.
func (c *Config) SyncJoinTimeout() time.Duration { return ms(c.SyncJoinTimeoutMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
