package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/trip-loader/internal/ledger"
	"github.com/jonathan/trip-loader/internal/types"
)

// RunLedger is the Postgres-backed ledger.Store for one pipeline.
type RunLedger struct {
	db       *DB
	pipeline string
}

// NewRunLedger builds a ledger scoped to the named pipeline.
func NewRunLedger(db *DB, pipeline string) *RunLedger {
	return &RunLedger{db: db, pipeline: pipeline}
}

var _ ledger.Store = (*RunLedger)(nil)

// BeginRun inserts a pending run. The runs_one_pending unique index turns
// a concurrent second begin into ErrRunInProgress.
func (l *RunLedger) BeginRun(ctx context.Context, window types.Window) (*types.Run, error) {
	run := &types.Run{
		ID:       uuid.New(),
		Pipeline: l.pipeline,
		Window:   window,
		Status:   types.RunPending,
	}
	err := l.db.pool.QueryRow(ctx,
		`INSERT INTO runs (id, pipeline, window_start, window_end, status)
		 VALUES ($1, $2, $3, $4, 'pending')
		 RETURNING started_at`,
		run.ID, l.pipeline, window.Start, window.End,
	).Scan(&run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to begin run: %w", classify(err))
	}
	return run, nil
}

// CompleteRun transitions a pending run to succeeded.
func (l *RunLedger) CompleteRun(ctx context.Context, id uuid.UUID, result types.MergeResult) error {
	tag, err := l.db.pool.Exec(ctx,
		`UPDATE runs
		 SET status = 'succeeded', rows_read = $2, rows_merged = $3, finished_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		id, result.RowsConsidered, result.RowsInserted+result.RowsUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s is not pending", id)
	}
	return nil
}

// FailRun transitions a pending run to failed with the error recorded.
func (l *RunLedger) FailRun(ctx context.Context, id uuid.UUID, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	tag, err := l.db.pool.Exec(ctx,
		`UPDATE runs
		 SET status = 'failed', error = $2, finished_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		id, msg,
	)
	if err != nil {
		return fmt.Errorf("failed to fail run: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s is not pending", id)
	}
	return nil
}

// LastSuccessfulWindow returns the window of the most recent succeeded
// run, ordered by window end.
func (l *RunLedger) LastSuccessfulWindow(ctx context.Context) (*types.Window, error) {
	var w types.Window
	err := l.db.pool.QueryRow(ctx,
		`SELECT window_start, window_end FROM runs
		 WHERE pipeline = $1 AND status = 'succeeded'
		 ORDER BY window_end DESC LIMIT 1`,
		l.pipeline,
	).Scan(&w.Start, &w.End)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query last successful window: %w", classify(err))
	}
	return &w, nil
}

// ReclaimStale marks pending runs older than the timeout as failed.
func (l *RunLedger) ReclaimStale(ctx context.Context, timeout time.Duration) (int, error) {
	cutoff := time.Now().Add(-timeout)
	tag, err := l.db.pool.Exec(ctx,
		`UPDATE runs
		 SET status = 'failed', error = $3, finished_at = now()
		 WHERE pipeline = $1 AND status = 'pending' AND started_at < $2`,
		l.pipeline, cutoff, ledger.StaleReason,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale runs: %w", classify(err))
	}
	return int(tag.RowsAffected()), nil
}

// ListRuns retrieves recent runs, newest first.
func (l *RunLedger) ListRuns(ctx context.Context, limit int) ([]types.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.pool.Query(ctx,
		`SELECT id, pipeline, window_start, window_end, status, rows_read, rows_merged,
		        COALESCE(error, ''), started_at, finished_at
		 FROM runs WHERE pipeline = $1
		 ORDER BY started_at DESC LIMIT $2`,
		l.pipeline, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", classify(err))
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		var run types.Run
		if err := rows.Scan(&run.ID, &run.Pipeline, &run.Window.Start, &run.Window.End,
			&run.Status, &run.RowsRead, &run.RowsMerged, &run.Error,
			&run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
