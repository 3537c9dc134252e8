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

// Environment variable names and prefixes.
const (
	EnvPrefix     = "CADENCE_"
	EnvConfigFile = "CADENCE_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CADENCE_CONFIG is set
//  3. env (prefix CADENCE_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// Map env keys like CADENCE_BATCH_LIMIT -> batch_limit (flat keys).
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.BatchLimit < 4:
		// a pair unit (two directional records and two back-references) must fit in one batch
		return fmt.Errorf("%w: batch_limit must be at least 4, got %d", ErrInvalidConfig, c.BatchLimit)
	case c.ScoreMin > c.ScoreMax:
		return fmt.Errorf("%w: %w: score_min %d exceeds score_max %d", ErrInvalidConfig, ErrInvalidScoring, c.ScoreMin, c.ScoreMax)
	case c.LowMax >= c.MidMax:
		return fmt.Errorf("%w: %w: low_max %d must be below mid_max %d", ErrInvalidConfig, ErrInvalidScoring, c.LowMax, c.MidMax)
	case c.LeadershipWeight < 0 || c.LeadershipWeight > 1:
		return fmt.Errorf("%w: %w: leadership_weight must be within [0,1], got %v", ErrInvalidConfig, ErrInvalidScoring, c.LeadershipWeight)
	}
	return nil
}
