// Package ledger tracks loader runs: what window each run covered, how it
// ended, and which windows have been durably loaded. The ledger is the
// source of truth for incremental scheduling and crash recovery, and is
// always injected so callers can substitute a test double.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/trip-loader/internal/types"
)

// Store is the durable run ledger for one logical pipeline.
//
// BeginRun must be committed before any data is written to the target, so
// an interrupted run is always discoverable. At most one pending run may
// exist per pipeline; a second BeginRun fails with types.ErrRunInProgress.
type Store interface {
	// BeginRun records a new pending run covering the given window.
	BeginRun(ctx context.Context, window types.Window) (*types.Run, error)

	// CompleteRun transitions a pending run to succeeded and records the
	// merge counts. Completing a non-pending run is an error.
	CompleteRun(ctx context.Context, id uuid.UUID, result types.MergeResult) error

	// FailRun transitions a pending run to failed with the error recorded.
	FailRun(ctx context.Context, id uuid.UUID, runErr error) error

	// LastSuccessfulWindow returns the window of the most recent succeeded
	// run, ordered by window end, or nil when none exists.
	LastSuccessfulWindow(ctx context.Context) (*types.Window, error)

	// ReclaimStale marks pending runs older than the timeout as failed so
	// a fresh run can supersede a crashed one. Returns the reclaim count.
	ReclaimStale(ctx context.Context, timeout time.Duration) (int, error)

	// ListRuns returns recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]types.Run, error)
}

// StaleReason is recorded on runs reclaimed by timeout.
const StaleReason = "stale pending run reclaimed by timeout"
