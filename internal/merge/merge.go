// Package merge applies deduplicated record batches to a durable target
// with upsert semantics. The central property is idempotence: merging the
// same batch twice against the same target state inserts nothing the
// second time.
package merge

import (
	"context"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/trip-loader/internal/fingerprint"
	"github.com/jonathan/trip-loader/internal/types"
)

// ConflictMode controls what happens when an incoming fingerprint already
// exists in the target.
type ConflictMode string

const (
	// ConflictSkip never touches existing rows: insert-only-unique,
	// matching the source pattern this loader was abstracted from.
	ConflictSkip ConflictMode = "skip"

	// ConflictUpdate overwrites the existing row with the incoming one,
	// so late-arriving corrections take effect.
	ConflictUpdate ConflictMode = "update"
)

// ParseConflictMode converts a config string into a ConflictMode.
func ParseConflictMode(s string) (ConflictMode, error) {
	switch ConflictMode(s) {
	case ConflictSkip, ConflictUpdate:
		return ConflictMode(s), nil
	default:
		return "", fmt.Errorf("unknown on_conflict mode %q (want skip or update)", s)
	}
}

// Target is the durable store capability the executor needs. Apply must be
// all-or-nothing: either every record lands or none do, and partial state
// is never observable to readers.
type Target interface {
	Apply(ctx context.Context, records []types.Record, mode ConflictMode) (inserted, updated int, err error)
}

// RunScoped is implemented by targets that record run provenance on the
// rows they write. The loader rebinds such targets to each run's ID before
// merging.
type RunScoped interface {
	WithRun(id uuid.UUID) Target
}

// Executor deduplicates batches by fingerprint and upserts them.
type Executor struct {
	keyFields []string
	mode      ConflictMode
}

// NewExecutor builds an executor over the ordered natural-key field set.
func NewExecutor(keyFields []string, mode ConflictMode) *Executor {
	return &Executor{keyFields: keyFields, mode: mode}
}

// Merge stamps fingerprints, collapses the batch to one record per
// fingerprint (last-write-wins within the batch), and applies the result
// to the target in a single transaction-equivalent step.
func (e *Executor) Merge(ctx context.Context, records []types.Record, target Target) (types.MergeResult, error) {
	result := types.MergeResult{RowsConsidered: len(records)}
	if len(records) == 0 {
		return result, nil
	}

	stamped, err := e.stampAll(ctx, records)
	if err != nil {
		return types.MergeResult{}, err
	}

	deduped := dedupe(stamped)

	inserted, updated, err := target.Apply(ctx, deduped, e.mode)
	if err != nil {
		return types.MergeResult{}, err
	}
	result.RowsInserted = inserted
	result.RowsUpdated = updated
	return result, nil
}

// stampAll fingerprints every record. Hashing is pure and per-record, so
// the batch is sharded across workers; output order matches input order.
func (e *Executor) stampAll(ctx context.Context, records []types.Record) ([]types.Record, error) {
	out := make([]types.Record, len(records))

	workers := runtime.NumCPU()
	if workers > len(records) {
		workers = len(records)
	}

	g, ctx := errgroup.WithContext(ctx)
	chunk := (len(records) + workers - 1) / workers
	for lo := 0; lo < len(records); lo += chunk {
		lo, hi := lo, lo+chunk
		if hi > len(records) {
			hi = len(records)
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				out[i] = fingerprint.Stamp(records[i], e.keyFields)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// dedupe keeps one record per fingerprint. The last occurrence in batch
// order wins, holding the position where the fingerprint first appeared.
func dedupe(records []types.Record) []types.Record {
	index := make(map[uuid.UUID]int, len(records))
	out := make([]types.Record, 0, len(records))
	for _, rec := range records {
		fp := rec.Fingerprint()
		if at, seen := index[fp]; seen {
			out[at] = rec
			continue
		}
		index[fp] = len(out)
		out = append(out, rec)
	}
	return out
}
