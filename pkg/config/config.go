// Package config loads environment-based configuration into typed structs.
//
// Configuration is loaded explicitly at startup and passed into constructors;
// there is deliberately no process-wide cache, so components never depend on
// implicit global state.
package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrNilPointer    = errors.New("config target must be a non-nil pointer")
	ErrParsingConfig = errors.New("failed to parse configuration")
)

// Load populates the configuration struct from environment variables,
// reading a .env file first if one exists.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	// The .env file is optional; a missing file is not an error.
	_ = godotenv.Load()

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics on failure. Use for configuration the
// process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(err)
	}
}
