package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables consulted outside the GRADECAST_ prefix scheme.
const (
	EnvPrefix     = "GRADECAST_"
	EnvConfigFile = "GRADECAST_CONFIG"
	EnvDotEnvFile = "GRADECAST_ENV_FILE"

	EnvSheetsAPIKey = "GOOGLE_SHEETS_API_KEY"
	EnvSheetID      = "GOOGLE_SHEET_ID"

	defaultDotEnv = ".env"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if GRADECAST_CONFIG is set
//  3. env (prefix GRADECAST_), after an optional .env file is merged into the
//     process environment without overriding variables already set
//
// GOOGLE_SHEETS_API_KEY and GOOGLE_SHEET_ID fill the mirror credentials when
// the prefixed keys are empty.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// GRADECAST_STORE_DRIVER -> store_driver (flat keys, underscores kept).
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
		if key == "cors_allowed_origins" {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if cfg.MirrorAPIKey == "" {
		cfg.MirrorAPIKey = os.Getenv(EnvSheetsAPIKey)
	}
	if cfg.MirrorSheetID == "" {
		cfg.MirrorSheetID = os.Getenv(EnvSheetID)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv(EnvDotEnvFile)
	explicit := path != ""
	if !explicit {
		path = defaultDotEnv
	}
	err := godotenv.Load(path)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		return nil
	default:
		return fmt.Errorf("%w: env file %s: %w", ErrLoadConfig, path, err)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
