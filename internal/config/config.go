// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and CADENCE_* env vars.
// - Validation failures wrap ErrInvalidConfig.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StorePath is the SQLite database file. Empty keeps everything in memory.
	StorePath string `koanf:"store_path"`

	// BatchLimit is the per-batch mutation ceiling of the document store.
	BatchLimit int `koanf:"batch_limit"`

	// ScoreMin and ScoreMax bound each of the six sub-scores.
	ScoreMin int `koanf:"score_min"`
	ScoreMax int `koanf:"score_max"`

	// LowMax and MidMax are the inclusive upper bounds of the low and mid
	// buckets applied to each axis total.
	LowMax int `koanf:"low_max"`
	MidMax int `koanf:"mid_max"`

	// LeadershipWeight is the share of the leadership-layer score in the
	// blended top-level index; the pillar score gets the remainder.
	LeadershipWeight float64 `koanf:"leadership_weight"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		StorePath:        "",
		BatchLimit:       500,
		ScoreMin:         0,
		ScoreMax:         2,
		LowMax:           2,
		MidMax:           4,
		LeadershipWeight: 0.6,
	}
}
