package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/trip-loader/internal/types"
)

// MemoryStore is an in-process Store for tests and dry runs. It enforces
// the same state machine and concurrency guard as the Postgres ledger.
type MemoryStore struct {
	mu       sync.Mutex
	pipeline string
	runs     map[uuid.UUID]*types.Run
	now      func() time.Time
}

// NewMemoryStore creates an empty ledger for the named pipeline.
func NewMemoryStore(pipeline string) *MemoryStore {
	return &MemoryStore{
		pipeline: pipeline,
		runs:     make(map[uuid.UUID]*types.Run),
		now:      time.Now,
	}
}

// SetClock overrides the time source, for stale-run tests.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) BeginRun(_ context.Context, window types.Window) (*types.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.runs {
		if r.Status == types.RunPending {
			return nil, fmt.Errorf("%w: run %s is pending since %s",
				types.ErrRunInProgress, r.ID, r.StartedAt.Format(time.RFC3339))
		}
	}

	run := &types.Run{
		ID:        uuid.New(),
		Pipeline:  m.pipeline,
		Window:    window,
		Status:    types.RunPending,
		StartedAt: m.now(),
	}
	m.runs[run.ID] = run
	out := *run
	return &out, nil
}

func (m *MemoryStore) CompleteRun(_ context.Context, id uuid.UUID, result types.MergeResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, err := m.pending(id)
	if err != nil {
		return err
	}
	now := m.now()
	run.Status = types.RunSucceeded
	run.RowsRead = result.RowsConsidered
	run.RowsMerged = result.RowsInserted + result.RowsUpdated
	run.FinishedAt = &now
	return nil
}

func (m *MemoryStore) FailRun(_ context.Context, id uuid.UUID, runErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, err := m.pending(id)
	if err != nil {
		return err
	}
	now := m.now()
	run.Status = types.RunFailed
	if runErr != nil {
		run.Error = runErr.Error()
	}
	run.FinishedAt = &now
	return nil
}

func (m *MemoryStore) LastSuccessfulWindow(_ context.Context) (*types.Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *types.Run
	for _, r := range m.runs {
		if r.Status != types.RunSucceeded {
			continue
		}
		if best == nil || r.Window.End.After(best.Window.End) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	w := best.Window
	return &w, nil
}

func (m *MemoryStore) ReclaimStale(_ context.Context, timeout time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	reclaimed := 0
	for _, r := range m.runs {
		if r.Status == types.RunPending && now.Sub(r.StartedAt) > timeout {
			finished := now
			r.Status = types.RunFailed
			r.Error = StaleReason
			r.FinishedAt = &finished
			reclaimed++
		}
	}
	return reclaimed, nil
}

func (m *MemoryStore) ListRuns(_ context.Context, limit int) ([]types.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetRun returns a copy of a run by ID, for test assertions.
func (m *MemoryStore) GetRun(id uuid.UUID) (types.Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return types.Run{}, false
	}
	return *r, true
}

func (m *MemoryStore) pending(id uuid.UUID) (*types.Run, error) {
	run, ok := m.runs[id]
	if !ok {
		return nil, errors.New("run not found")
	}
	if run.Status.Terminal() {
		return nil, fmt.Errorf("run %s already %s", id, run.Status)
	}
	return run, nil
}
