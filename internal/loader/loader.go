// Package loader provides the high-level orchestration for one incremental
// load: select the window, record the run, pull records, validate,
// fingerprint, merge, and settle the ledger.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/trip-loader/internal/extract"
	"github.com/jonathan/trip-loader/internal/ledger"
	"github.com/jonathan/trip-loader/internal/merge"
	"github.com/jonathan/trip-loader/internal/schemas"
	"github.com/jonathan/trip-loader/internal/types"
	"github.com/jonathan/trip-loader/internal/window"
)

// ProgressEvent represents a progress update during a load
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

// ProgressCallback is called when load progress occurs
type ProgressCallback func(event ProgressEvent)

// Options holds the collaborators and policy knobs for a Loader. Ledger,
// Target, Source, and Selector are required; everything else has defaults.
type Options struct {
	Ledger    ledger.Store
	Target    merge.Target
	Source    extract.Source
	Selector  *window.Selector
	Validator *schemas.Validator

	KeyFields    []string
	ConflictMode merge.ConflictMode

	StaleRunTimeout time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration

	Logger     *slog.Logger
	OnProgress ProgressCallback
}

// Loader runs discrete incremental load jobs against one pipeline.
type Loader struct {
	opts Options
	exec *merge.Executor
	log  *slog.Logger
}

// New validates the options and builds a Loader.
func New(opts Options) (*Loader, error) {
	switch {
	case opts.Ledger == nil:
		return nil, errors.New("loader: Ledger is required")
	case opts.Target == nil:
		return nil, errors.New("loader: Target is required")
	case opts.Source == nil:
		return nil, errors.New("loader: Source is required")
	case opts.Selector == nil:
		return nil, errors.New("loader: Selector is required")
	case len(opts.KeyFields) == 0:
		return nil, errors.New("loader: KeyFields is required")
	}

	if opts.ConflictMode == "" {
		opts.ConflictMode = merge.ConflictSkip
	}
	if opts.StaleRunTimeout <= 0 {
		opts.StaleRunTimeout = time.Hour
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Loader{
		opts: opts,
		exec: merge.NewExecutor(opts.KeyFields, opts.ConflictMode),
		log:  opts.Logger,
	}, nil
}

// Run performs one default-mode incremental load: the window immediately
// following the last successful one.
func (l *Loader) Run(ctx context.Context) (*types.Run, error) {
	if err := l.reclaimStale(ctx); err != nil {
		return nil, err
	}

	last, err := l.opts.Ledger.LastSuccessfulWindow(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return l.load(ctx, l.opts.Selector.Next(last))
}

// Backfill performs one explicit-window load. The window may overlap
// previously loaded ones; the fingerprint-keyed upsert keeps the re-merge
// safe.
func (l *Loader) Backfill(ctx context.Context, start, end time.Time) (*types.Run, error) {
	if err := l.reclaimStale(ctx); err != nil {
		return nil, err
	}

	w, err := l.opts.Selector.Backfill(start, end)
	if err != nil {
		return nil, err
	}
	return l.load(ctx, w)
}

// load executes one run over the given window. BeginRun is committed
// before any target write so an interrupted run is always discoverable;
// every failure after that point lands on the run via FailRun.
func (l *Loader) load(ctx context.Context, w types.Window) (*types.Run, error) {
	run, err := l.opts.Ledger.BeginRun(ctx, w)
	if err != nil {
		return nil, err
	}
	l.log.Info("run started", "run_id", run.ID, "window", w.String())
	l.emit("begin", fmt.Sprintf("window %s", w), run.ID.String())

	result, err := l.execute(ctx, run, w)
	if err != nil {
		l.log.Error("run failed", "run_id", run.ID, "error", err)
		if failErr := l.opts.Ledger.FailRun(ctx, run.ID, err); failErr != nil {
			l.log.Error("failed to record run failure", "run_id", run.ID, "error", failErr)
		}
		run.Status = types.RunFailed
		run.Error = err.Error()
		return run, err
	}

	if err := l.opts.Ledger.CompleteRun(ctx, run.ID, result); err != nil {
		return run, fmt.Errorf("failed to complete run: %w", err)
	}
	run.Status = types.RunSucceeded
	run.RowsRead = result.RowsConsidered
	run.RowsMerged = result.RowsInserted + result.RowsUpdated

	l.log.Info("run succeeded", "run_id", run.ID,
		"rows_read", result.RowsConsidered,
		"rows_inserted", result.RowsInserted,
		"rows_updated", result.RowsUpdated)
	l.emit("complete", fmt.Sprintf("%d read, %d inserted, %d updated",
		result.RowsConsidered, result.RowsInserted, result.RowsUpdated), run.ID.String())
	return run, nil
}

// execute covers the fallible middle of a run: extract, validate, merge.
func (l *Loader) execute(ctx context.Context, run *types.Run, w types.Window) (types.MergeResult, error) {
	records, err := l.opts.Source.Fetch(ctx, w)
	if err != nil {
		return types.MergeResult{}, fmt.Errorf("extract failed: %w", err)
	}
	l.emit("extract", fmt.Sprintf("%d records", len(records)), run.ID.String())

	if l.opts.Validator != nil {
		if err := l.opts.Validator.ValidateBatch(records); err != nil {
			return types.MergeResult{}, err
		}
	}

	target := l.opts.Target
	if scoped, ok := target.(merge.RunScoped); ok {
		target = scoped.WithRun(run.ID)
	}

	return l.mergeWithRetry(ctx, records, target)
}

// mergeWithRetry retries transient target failures with exponential
// backoff. Fatal kinds (schema mismatch, invalid window) surface at once.
func (l *Loader) mergeWithRetry(ctx context.Context, records []types.Record, target merge.Target) (types.MergeResult, error) {
	delay := l.opts.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= l.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			l.log.Warn("merge retry", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return types.MergeResult{}, ctx.Err()
			}
			delay *= 2
		}

		result, err := l.exec.Merge(ctx, records, target)
		if err == nil {
			return result, nil
		}
		if !types.Retryable(err) {
			return types.MergeResult{}, err
		}
		lastErr = err
	}
	return types.MergeResult{}, fmt.Errorf("merge retries exhausted: %w", lastErr)
}

// reclaimStale fails pending runs abandoned past the timeout, so a crash
// never wedges the pipeline. The superseding run re-merges idempotently.
func (l *Loader) reclaimStale(ctx context.Context) error {
	n, err := l.opts.Ledger.ReclaimStale(ctx, l.opts.StaleRunTimeout)
	if err != nil {
		return fmt.Errorf("failed to reclaim stale runs: %w", err)
	}
	if n > 0 {
		l.log.Warn("reclaimed stale pending runs", "count", n)
	}
	return nil
}

// emit calls the progress callback if configured
func (l *Loader) emit(step, message, runID string) {
	if l.opts.OnProgress != nil {
		l.opts.OnProgress(ProgressEvent{Step: step, Message: message, RunID: runID})
	}
}
