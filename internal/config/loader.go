package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if MACROFEED_CONFIG is set
//  3. env (prefix MACROFEED_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("MACROFEED_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: MACROFEED_FRED_API_KEY, MACROFEED_START_YEAR, ...
	// Map env keys like MACROFEED_START_YEAR -> start_year (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("MACROFEED_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "macrofeed_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations that would fail mid-run. Missing
// credentials for a selected source abort before any fetch.
func (c *Config) validate() error {
	if c.StartYear < 1900 {
		return fmt.Errorf("%w: start_year %d is before 1900", ErrInvalidConfig, c.StartYear)
	}
	if c.MinValue > c.MaxValue {
		return fmt.Errorf("%w: min_value exceeds max_value", ErrInvalidConfig)
	}
	if c.OutlierStdDevs < 0 {
		return fmt.Errorf("%w: outlier_std_devs must not be negative", ErrInvalidConfig)
	}
	return nil
}
