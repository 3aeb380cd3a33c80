// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - Load layers a YAML file and GROUPSPLIT_ env vars on top of the defaults.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"fmt"
	"strings"
)

// History backends understood by the repository package.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// GroupSize is the target number of individuals per grouping.
	GroupSize int `koanf:"group_size"`

	// RosterFile lists the individuals to split (.json, .jsonc, .yaml).
	RosterFile string `koanf:"roster_file"`

	// ExemptFile lists sets of individuals that already know each other.
	// Empty means no exemptions.
	ExemptFile string `koanf:"exempt_file"`

	// HistoryBackend selects where past occurrences live: json or sqlite.
	HistoryBackend string `koanf:"history_backend"`

	// HistoryFile is the JSON history log used by the json backend.
	HistoryFile string `koanf:"history_file"`

	// SQLitePath is the database file used by the sqlite backend.
	SQLitePath string `koanf:"sqlite_path"`

	// WeightCoefficient scales a partner's recency rank into a score.
	WeightCoefficient float64 `koanf:"weight_coefficient"`

	// Workers sets the number of scoring goroutines; 1 scores sequentially.
	Workers int `koanf:"workers"`

	// DedupeSize bounds the candidate deduper; 0 disables deduplication.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxHistoryLimit caps GET /history?limit.
	MaxHistoryLimit int `koanf:"max_history_limit"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		GroupSize:         2,
		RosterFile:        "Individuals.json",
		ExemptFile:        "Roommates.json",
		HistoryBackend:    BackendJSON,
		HistoryFile:       "History.json",
		SQLitePath:        "groupsplit.db",
		WeightCoefficient: 3,
		Workers:           1,
		DedupeSize:        50_000,
		MaxHistoryLimit:   100,
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.GroupSize <= 0:
		return fmt.Errorf("%w: group_size must be positive, got %d", ErrInvalidConfig, c.GroupSize)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	case c.DedupeSize < 0:
		return fmt.Errorf("%w: dedupe_size must not be negative, got %d", ErrInvalidConfig, c.DedupeSize)
	case c.MaxHistoryLimit <= 0:
		return fmt.Errorf("%w: max_history_limit must be positive, got %d", ErrInvalidConfig, c.MaxHistoryLimit)
	}

	switch strings.ToLower(c.HistoryBackend) {
	case BackendJSON:
		if c.HistoryFile == "" {
			return fmt.Errorf("%w: history_file must not be empty", ErrInvalidConfig)
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown history_backend %q", ErrInvalidConfig, c.HistoryBackend)
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// HistoryPath returns the file the configured backend stores history in.
func (c *Config) HistoryPath() string {
	if strings.ToLower(c.HistoryBackend) == BackendSQLite {
		return c.SQLitePath
	}
	return c.HistoryFile
}
