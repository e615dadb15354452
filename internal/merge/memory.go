package merge

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/trip-loader/internal/types"
)

// MemoryTarget is an in-process Target for tests. Apply holds the lock for
// the whole batch, so a batch is atomic with respect to Rows.
type MemoryTarget struct {
	mu   sync.Mutex
	rows map[uuid.UUID]types.Record

	// Unavailable makes every Apply fail with ErrTargetUnavailable,
	// simulating an unreachable store.
	Unavailable bool
}

// NewMemoryTarget creates an empty target.
func NewMemoryTarget() *MemoryTarget {
	return &MemoryTarget{rows: make(map[uuid.UUID]types.Record)}
}

func (t *MemoryTarget) Apply(_ context.Context, records []types.Record, mode ConflictMode) (int, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Unavailable {
		return 0, 0, fmt.Errorf("%w: memory target marked unavailable", types.ErrTargetUnavailable)
	}

	// Validate the whole batch before mutating anything, so a bad record
	// aborts with no partial application.
	for i, rec := range records {
		if rec.Fingerprint() == uuid.Nil {
			return 0, 0, fmt.Errorf("%w: record %d has no fingerprint", types.ErrSchemaMismatch, i)
		}
	}

	inserted, updated := 0, 0
	for _, rec := range records {
		fp := rec.Fingerprint()
		if _, exists := t.rows[fp]; exists {
			if mode == ConflictUpdate {
				t.rows[fp] = rec.Clone()
				updated++
			}
			continue
		}
		t.rows[fp] = rec.Clone()
		inserted++
	}
	return inserted, updated, nil
}

// Len returns the number of distinct fingerprints stored.
func (t *MemoryTarget) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// Row returns the stored record for a fingerprint.
func (t *MemoryTarget) Row(fp uuid.UUID) (types.Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.rows[fp]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}
