package config

import "errors"

// Sentinel kinds for configuration failures, matchable with errors.Is.
var (
	// ErrInvalidConfig means the loaded values fail validation and the
	// run must not start.
	ErrInvalidConfig = errors.New("import config invalid")

	// ErrLoadConfig means a config source (file or environment) could
	// not be read or parsed.
	ErrLoadConfig = errors.New("import config load failed")
)
