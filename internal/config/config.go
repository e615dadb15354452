// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults applied when neither the config file nor flags set a value.
const (
	DefaultGranularity     = "month"
	DefaultEpoch           = "2019-01-01T00:00:00Z"
	DefaultOnConflict      = "skip"
	DefaultStaleRunTimeout = "1h"
	DefaultSchemaPath      = "schemas/trip.schema.json"
	DefaultLogFile         = "trip-loader.log"
)

// Config represents the loader configuration that can be loaded from a
// JSON file. Missing values use defaults or must be provided via CLI
// flags.
type Config struct {
	// Pipeline identity
	Pipeline string `json:"pipeline,omitempty" validate:"required"`

	// Incremental policy
	Granularity     string   `json:"granularity,omitempty" validate:"oneof=day month"`
	KeyFields       []string `json:"key_fields,omitempty" validate:"min=1,dive,required"`
	EpochDefault    string   `json:"epoch_default,omitempty" validate:"required"`
	StaleRunTimeout string   `json:"stale_run_timeout,omitempty" validate:"required"`
	OnConflict      string   `json:"on_conflict,omitempty" validate:"oneof=skip update"`

	// Collaborators
	DatabaseURL    string `json:"database_url,omitempty"`    // PostgreSQL connection URL
	SourceURL      string `json:"source_url,omitempty"`      // Paginated JSON endpoint
	SourceFile     string `json:"source_file,omitempty"`     // JSONL export for offline loads
	TimestampField string `json:"timestamp_field,omitempty"` // Incremental column name
	SchemaPath     string `json:"schema_path,omitempty"`     // Record schema for boundary validation

	// Retry policy
	MaxRetries   int    `json:"max_retries,omitempty" validate:"min=0"`
	RetryBackoff string `json:"retry_backoff,omitempty"`

	// Logging
	LogFile  string `json:"log_file,omitempty"`
	LogLevel string `json:"log_level,omitempty"`
	Verbose  bool   `json:"verbose,omitempty"`
}

// Default returns a Config populated with defaults for the taxi-trip
// pipeline.
func Default() Config {
	return Config{
		Pipeline:        "taxi_trips",
		Granularity:     DefaultGranularity,
		KeyFields:       []string{"pickup_datetime", "dropoff_datetime", "pu_location_id", "do_location_id", "total_amount"},
		EpochDefault:    DefaultEpoch,
		StaleRunTimeout: DefaultStaleRunTimeout,
		OnConflict:      DefaultOnConflict,
		TimestampField:  "pickup_datetime",
		SchemaPath:      DefaultSchemaPath,
		MaxRetries:      3,
		RetryBackoff:    "2s",
		LogFile:         DefaultLogFile,
		LogLevel:        "INFO",
	}
}

// LoadConfig loads configuration from a JSON file over the defaults.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values. Struct tags
// cover shape; the cross-field and parse checks live here.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.SourceURL != "" && c.SourceFile != "" {
		return fmt.Errorf("config error: 'source_url' and 'source_file' are mutually exclusive")
	}

	if _, err := c.Epoch(); err != nil {
		return err
	}
	if _, err := c.StaleTimeout(); err != nil {
		return err
	}
	if c.RetryBackoff != "" {
		if _, err := time.ParseDuration(c.RetryBackoff); err != nil {
			return fmt.Errorf("config error: invalid retry_backoff %q: %w", c.RetryBackoff, err)
		}
	}
	return nil
}

// Epoch parses the epoch_default timestamp.
func (c *Config) Epoch() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.EpochDefault)
	if err != nil {
		return time.Time{}, fmt.Errorf("config error: invalid epoch_default %q: %w", c.EpochDefault, err)
	}
	return t, nil
}

// StaleTimeout parses the stale_run_timeout duration.
func (c *Config) StaleTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.StaleRunTimeout)
	if err != nil {
		return 0, fmt.Errorf("config error: invalid stale_run_timeout %q: %w", c.StaleRunTimeout, err)
	}
	return d, nil
}

// Backoff parses retry_backoff, falling back to the default on empty.
func (c *Config) Backoff() time.Duration {
	if c.RetryBackoff == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(c.RetryBackoff)
	if err != nil {
		return 2 * time.Second
	}
	return d
}
