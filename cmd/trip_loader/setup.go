package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jonathan/trip-loader/internal/config"
	"github.com/jonathan/trip-loader/internal/db"
	"github.com/jonathan/trip-loader/internal/extract"
	"github.com/jonathan/trip-loader/internal/loader"
	"github.com/jonathan/trip-loader/internal/merge"
	"github.com/jonathan/trip-loader/internal/schemas"
	"github.com/jonathan/trip-loader/internal/types"
	"github.com/jonathan/trip-loader/internal/window"
)

// flagOverrides are the CLI flags shared by run and backfill; non-zero
// values take priority over the config file.
type flagOverrides struct {
	configPath  string
	pipeline    string
	databaseURL string
	sourceURL   string
	sourceFile  string
	granularity string
	epoch       string
	onConflict  string
	verbose     bool
}

// loadConfig merges defaults, the optional config file, env vars, and
// flags, then validates the result.
func loadConfig(o *flagOverrides) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.LoadConfig(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	if o.pipeline != "" {
		cfg.Pipeline = o.pipeline
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.sourceURL != "" {
		cfg.SourceURL = o.sourceURL
	}
	if o.sourceFile != "" {
		cfg.SourceFile = o.sourceFile
	}
	if o.granularity != "" {
		cfg.Granularity = o.granularity
	}
	if o.epoch != "" {
		cfg.EpochDefault = o.epoch
	}
	if o.onConflict != "" {
		cfg.OnConflict = o.onConflict
	}
	if o.verbose {
		cfg.Verbose = true
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// buildLoader wires the configured collaborators into a Loader. The
// returned cleanup closes the database pool and log file.
func buildLoader(ctx context.Context, cfg *config.Config) (*loader.Loader, func(), error) {
	logger, closeLog := config.SetupLogger(cfg.LogFile, config.ParseLogLevel(cfg.LogLevel))

	cleanup := func() { _ = closeLog() }
	fail := func(err error) (*loader.Loader, func(), error) {
		cleanup()
		return nil, nil, err
	}

	if cfg.DatabaseURL == "" {
		return fail(fmt.Errorf("a database URL is required (--db-url, config database_url, or DATABASE_URL)"))
	}

	granularity, err := types.ParseGranularity(cfg.Granularity)
	if err != nil {
		return fail(err)
	}
	epoch, err := cfg.Epoch()
	if err != nil {
		return fail(err)
	}
	selector, err := window.NewSelector(granularity, epoch)
	if err != nil {
		return fail(err)
	}

	mode, err := merge.ParseConflictMode(cfg.OnConflict)
	if err != nil {
		return fail(err)
	}

	staleTimeout, err := cfg.StaleTimeout()
	if err != nil {
		return fail(err)
	}

	source, err := buildSource(cfg)
	if err != nil {
		return fail(err)
	}

	var validator *schemas.Validator
	if cfg.SchemaPath != "" {
		resolved := schemas.ResolveSchemaPath(cfg.SchemaPath)
		if resolved == "" {
			return fail(fmt.Errorf("schema file not found: %s", cfg.SchemaPath))
		}
		validator, err = schemas.NewValidator(resolved)
		if err != nil {
			return fail(err)
		}
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fail(err)
	}
	cleanupAll := func() {
		database.Close()
		_ = closeLog()
	}

	ld, err := loader.New(loader.Options{
		Ledger:          db.NewRunLedger(database, cfg.Pipeline),
		Target:          db.NewTripTarget(database),
		Source:          source,
		Selector:        selector,
		Validator:       validator,
		KeyFields:       cfg.KeyFields,
		ConflictMode:    mode,
		StaleRunTimeout: staleTimeout,
		MaxRetries:      cfg.MaxRetries,
		RetryBackoff:    cfg.Backoff(),
		Logger:          logger,
	})
	if err != nil {
		cleanupAll()
		return nil, nil, err
	}
	return ld, cleanupAll, nil
}

func buildSource(cfg *config.Config) (extract.Source, error) {
	switch {
	case cfg.SourceURL != "":
		return extract.NewRESTSource(cfg.SourceURL, nil)
	case cfg.SourceFile != "":
		return extract.NewFileSource(cfg.SourceFile, cfg.TimestampField), nil
	default:
		return nil, fmt.Errorf("a source is required (--source-url or --source-file)")
	}
}

// parseBound accepts RFC 3339 timestamps or bare dates for window bounds.
func parseBound(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q (want RFC 3339 or YYYY-MM-DD)", s)
}
