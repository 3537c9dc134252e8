package config

import "errors"

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps file, environment and unmarshal failures.
	ErrLoadConfig = errors.New("load config failed")
	// ErrInvalidScoring marks score range, threshold or weight settings that cannot classify.
	ErrInvalidScoring = errors.New("invalid scoring settings")
)
