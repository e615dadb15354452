// Package db provides PostgreSQL access for the trip target table and the
// run ledger.
package db

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/trip-loader/internal/types"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", types.ErrTargetUnavailable, err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Migrate creates the trips and runs tables if they do not exist. The
// partial unique index on runs enforces at most one pending run per
// pipeline at the database level.
func (db *DB) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id UUID PRIMARY KEY,
			pipeline TEXT NOT NULL,
			window_start TIMESTAMPTZ NOT NULL,
			window_end TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			rows_read INT NOT NULL DEFAULT 0,
			rows_merged INT NOT NULL DEFAULT 0,
			error TEXT,
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			finished_at TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS runs_one_pending
			ON runs (pipeline) WHERE status = 'pending'`,
		`CREATE INDEX IF NOT EXISTS runs_succeeded_window_end
			ON runs (pipeline, window_end DESC) WHERE status = 'succeeded'`,
		`CREATE TABLE IF NOT EXISTS trips (
			fingerprint UUID PRIMARY KEY,
			vendor_id TEXT,
			pickup_datetime TIMESTAMPTZ NOT NULL,
			dropoff_datetime TIMESTAMPTZ,
			pu_location_id TEXT,
			do_location_id TEXT,
			passenger_count INT,
			trip_distance DOUBLE PRECISION,
			payment_type TEXT,
			fare_amount DOUBLE PRECISION,
			tip_amount DOUBLE PRECISION,
			tolls_amount DOUBLE PRECISION,
			total_amount DOUBLE PRECISION,
			payload JSONB NOT NULL,
			run_id UUID,
			loaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS trips_pickup_datetime ON trips (pickup_datetime)`,
	}

	for _, stmt := range statements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", classify(err))
		}
	}
	return nil
}

// classify maps low-level pgx errors onto the loader's error taxonomy:
// connectivity problems become ErrTargetUnavailable (retryable), datatype
// problems become ErrSchemaMismatch (fatal), and unique violations on the
// pending-run index become ErrRunInProgress.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", types.ErrTargetUnavailable, err)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %v", types.ErrTargetUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %v", types.ErrRunInProgress, err)
		case pgErr.Code == "42804" || pgErr.Code == "42703" || code2(pgErr) == "22":
			return fmt.Errorf("%w: %v", types.ErrSchemaMismatch, err)
		case code2(pgErr) == "08":
			return fmt.Errorf("%w: %v", types.ErrTargetUnavailable, err)
		}
	}
	return err
}

// code2 returns the two-character SQLSTATE class.
func code2(pgErr *pgconn.PgError) string {
	if len(pgErr.Code) < 2 {
		return pgErr.Code
	}
	return pgErr.Code[:2]
}
