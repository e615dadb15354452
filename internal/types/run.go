package types

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the state of a loader run. Transitions are
// pending -> succeeded or pending -> failed; terminal states are final.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed
}

// Run records one execution of the loader in the run ledger. A run is
// created as pending, mutated only by its owning execution, and immutable
// once FinishedAt is set.
type Run struct {
	ID         uuid.UUID  `json:"id"`
	Pipeline   string     `json:"pipeline"`
	Window     Window     `json:"window"`
	Status     RunStatus  `json:"status"`
	RowsRead   int        `json:"rows_read"`
	RowsMerged int        `json:"rows_merged"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// MergeResult summarizes the outcome of merging one deduplicated batch.
type MergeResult struct {
	RowsConsidered int `json:"rows_considered"`
	RowsInserted   int `json:"rows_inserted"`
	RowsUpdated    int `json:"rows_updated"`
}

// Add accumulates another result, used when a run merges in chunks.
func (m *MergeResult) Add(other MergeResult) {
	m.RowsConsidered += other.RowsConsidered
	m.RowsInserted += other.RowsInserted
	m.RowsUpdated += other.RowsUpdated
}
