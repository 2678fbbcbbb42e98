// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - Keys are flat snake_case so env vars map onto them directly.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Scorer modes.
const (
	ScorerHeuristic = "heuristic"
	ScorerRemote    = "remote"
	ScorerSimulated = "simulated"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorageDriver is one of memory, sqlite or postgres.
	StorageDriver string `koanf:"storage_driver"`

	// StorageDSN is a file path or ":memory:" for sqlite, a connection URL for postgres.
	StorageDSN string `koanf:"storage_dsn"`

	// ScorerMode picks the preferred scorer: heuristic, remote or simulated.
	ScorerMode string `koanf:"scorer_mode"`

	// ScorerURL is the base URL of the remote predictor.
	ScorerURL string `koanf:"scorer_url"`

	// ScorerTimeoutMS bounds one preferred-scorer call.
	ScorerTimeoutMS int `koanf:"scorer_timeout_ms"`

	// ScorerLatencyMinMS and ScorerLatencyMaxMS shape the simulated scorer's delay.
	ScorerLatencyMinMS int `koanf:"scorer_latency_min_ms"`
	ScorerLatencyMaxMS int `koanf:"scorer_latency_max_ms"`

	// ExplainConcurrency caps parallel explanation work per request.
	ExplainConcurrency int `koanf:"explain_concurrency"`

	// IndustryGateExperience requires an industry match for "Industry Experience".
	IndustryGateExperience bool `koanf:"industry_gate_experience"`

	// IndustryCaseInsensitive folds case when comparing industries.
	IndustryCaseInsensitive bool `koanf:"industry_case_insensitive"`

	// NameMatchThreshold is the minimum similarity for business name verification.
	NameMatchThreshold float64 `koanf:"name_match_threshold"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		StorageDriver:          StorageMemory,
		ScorerMode:             ScorerHeuristic,
		ScorerTimeoutMS:        2000,
		ScorerLatencyMinMS:     80,
		ScorerLatencyMaxMS:     150,
		ExplainConcurrency:     8,
		IndustryGateExperience: true,
		NameMatchThreshold:     0.85,
	}
}

// ScorerTimeout returns ScorerTimeoutMS as a duration.
func (c *Config) ScorerTimeout() time.Duration {
	return time.Duration(c.ScorerTimeoutMS) * time.Millisecond
}

// ScorerLatencyRange returns the simulated latency bounds.
func (c *Config) ScorerLatencyRange() (time.Duration, time.Duration) {
	return time.Duration(c.ScorerLatencyMinMS) * time.Millisecond,
		time.Duration(c.ScorerLatencyMaxMS) * time.Millisecond
}

// Validate checks field values and their combinations.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !slices.Contains([]string{"text", "json"}, c.LogFormat):
		return fmt.Errorf("%w: log_format %q must be text or json", ErrInvalidConfig, c.LogFormat)
	case !slices.Contains([]string{StorageMemory, StorageSQLite, StoragePostgres}, c.StorageDriver):
		return fmt.Errorf("%w: unknown storage_driver %q", ErrInvalidConfig, c.StorageDriver)
	case c.StorageDriver != StorageMemory && c.StorageDSN == "":
		return fmt.Errorf("%w: storage_dsn is required for %s", ErrInvalidConfig, c.StorageDriver)
	case !slices.Contains([]string{ScorerHeuristic, ScorerRemote, ScorerSimulated}, c.ScorerMode):
		return fmt.Errorf("%w: unknown scorer_mode %q", ErrInvalidConfig, c.ScorerMode)
	case c.ScorerMode == ScorerRemote && c.ScorerURL == "":
		return fmt.Errorf("%w: scorer_url is required for remote scoring", ErrInvalidConfig)
	case c.ScorerTimeoutMS <= 0:
		return fmt.Errorf("%w: scorer_timeout_ms must be positive", ErrInvalidConfig)
	case c.ScorerLatencyMinMS <= 0 || c.ScorerLatencyMaxMS <= c.ScorerLatencyMinMS:
		return fmt.Errorf("%w: scorer latency range must satisfy 0 < min < max", ErrInvalidConfig)
	case c.ExplainConcurrency <= 0:
		return fmt.Errorf("%w: explain_concurrency must be positive", ErrInvalidConfig)
	case c.NameMatchThreshold <= 0 || c.NameMatchThreshold > 1:
		return fmt.Errorf("%w: name_match_threshold must be in (0,1]", ErrInvalidConfig)
	}
	return nil
}
