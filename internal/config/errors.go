package config

import "errors"

// ErrInvalidConfig is wrapped by every validation failure.
// ErrLoadConfig is wrapped when the file or environment cannot be read.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
