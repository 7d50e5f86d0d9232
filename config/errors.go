package config

import "errors"

var (
	// ErrMissingEnv indicates a ${VAR} reference to an unset variable.
	ErrMissingEnv = errors.New("config: missing required environment variables")

	// ErrInvalid indicates a value that failed validation.
	ErrInvalid = errors.New("config: invalid value")
)
