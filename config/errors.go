package config

import "errors"

var (
	// ErrInvalidConfig indicates the loaded settings failed validation.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrReadConfig indicates the config file could not be read or parsed.
	ErrReadConfig = errors.New("config: cannot read config file")
)
