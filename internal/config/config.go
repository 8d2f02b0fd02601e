// Package config loads interpreter settings from TOML files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/roach88/scp/internal/interp"
)

// Config holds runtime settings. Command-line flags override file values.
type Config struct {
	Workers  int
	MaxSteps int
	LogLevel slog.Level
	Database string
	Metrics  bool
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Workers:  4,
		MaxSteps: interp.DefaultMaxSteps,
		LogLevel: slog.LevelInfo,
	}
}

type fileConfig struct {
	Workers  int    `toml:"workers"`
	MaxSteps int    `toml:"max_steps"`
	LogLevel string `toml:"log_level"`
	Database string `toml:"database"`
	Metrics  bool   `toml:"metrics"`
}

// Load overlays the keys defined in the TOML file at path onto Default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("workers") {
		cfg.Workers = raw.Workers
	}

	if meta.IsDefined("max_steps") {
		cfg.MaxSteps = raw.MaxSteps
	}

	if meta.IsDefined("log_level") {
		level, err := ParseLogLevel(raw.LogLevel)
		if err != nil {
			return Config{}, fmt.Errorf("parse log_level: %w", err)
		}
		cfg.LogLevel = level
	}

	if meta.IsDefined("database") {
		cfg.Database = strings.TrimSpace(raw.Database)
	}

	if meta.IsDefined("metrics") {
		cfg.Metrics = raw.Metrics
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the runtime cannot use.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.MaxSteps < 0 {
		errs = append(errs, fmt.Errorf("max_steps must not be negative, got %d", c.MaxSteps))
	}
	return errors.Join(errs...)
}

// ParseLogLevel accepts debug, info, warn and error, case-insensitively.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, err
	}
	return level, nil
}
