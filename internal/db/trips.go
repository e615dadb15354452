package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/trip-loader/internal/merge"
	"github.com/jonathan/trip-loader/internal/types"
)

// TripTarget writes deduplicated trip records into the trips table. A
// batch is applied inside one transaction: it either fully commits or
// fully rolls back, so readers never observe a partial merge.
type TripTarget struct {
	db    *DB
	runID uuid.UUID
}

// NewTripTarget builds a target over the shared trips table.
func NewTripTarget(db *DB) *TripTarget {
	return &TripTarget{db: db}
}

var (
	_ merge.Target    = (*TripTarget)(nil)
	_ merge.RunScoped = (*TripTarget)(nil)
)

// WithRun returns a copy bound to the given run for provenance.
func (t *TripTarget) WithRun(id uuid.UUID) merge.Target {
	return &TripTarget{db: t.db, runID: id}
}

const insertTripSQL = `
	INSERT INTO trips (
		fingerprint, vendor_id, pickup_datetime, dropoff_datetime,
		pu_location_id, do_location_id, passenger_count, trip_distance,
		payment_type, fare_amount, tip_amount, tolls_amount, total_amount,
		payload, run_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

// Apply upserts the batch. Insert-only mode skips existing fingerprints
// entirely; update mode overwrites them. The xmax = 0 check distinguishes
// a fresh insert from a conflict-update on the returned row.
func (t *TripTarget) Apply(ctx context.Context, records []types.Record, mode merge.ConflictMode) (int, int, error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	tx, err := t.db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for i, rec := range records {
		args, err := tripArgs(rec, t.runID)
		if err != nil {
			return 0, 0, fmt.Errorf("record %d: %w", i, err)
		}
		if mode == merge.ConflictUpdate {
			batch.Queue(insertTripSQL+`
				ON CONFLICT (fingerprint) DO UPDATE SET
					vendor_id = EXCLUDED.vendor_id,
					pickup_datetime = EXCLUDED.pickup_datetime,
					dropoff_datetime = EXCLUDED.dropoff_datetime,
					pu_location_id = EXCLUDED.pu_location_id,
					do_location_id = EXCLUDED.do_location_id,
					passenger_count = EXCLUDED.passenger_count,
					trip_distance = EXCLUDED.trip_distance,
					payment_type = EXCLUDED.payment_type,
					fare_amount = EXCLUDED.fare_amount,
					tip_amount = EXCLUDED.tip_amount,
					tolls_amount = EXCLUDED.tolls_amount,
					total_amount = EXCLUDED.total_amount,
					payload = EXCLUDED.payload,
					run_id = EXCLUDED.run_id,
					loaded_at = now()
				RETURNING (xmax = 0) AS inserted`, args...)
		} else {
			batch.Queue(insertTripSQL+` ON CONFLICT (fingerprint) DO NOTHING`, args...)
		}
	}

	results := tx.SendBatch(ctx, batch)
	inserted, updated := 0, 0
	for range records {
		if mode == merge.ConflictUpdate {
			var freshInsert bool
			if err := results.QueryRow().Scan(&freshInsert); err != nil {
				_ = results.Close()
				return 0, 0, fmt.Errorf("merge batch failed: %w", classify(err))
			}
			if freshInsert {
				inserted++
			} else {
				updated++
			}
		} else {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return 0, 0, fmt.Errorf("merge batch failed: %w", classify(err))
			}
			inserted += int(tag.RowsAffected())
		}
	}
	if err := results.Close(); err != nil {
		return 0, 0, fmt.Errorf("merge batch failed: %w", classify(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit merge: %w", classify(err))
	}
	return inserted, updated, nil
}

// tripArgs maps a record onto the trips column order. Records reach this
// point schema-validated, so a missing pickup timestamp is a programming
// error surfaced as ErrSchemaMismatch rather than a silent null.
func tripArgs(rec types.Record, runID uuid.UUID) ([]any, error) {
	fp := rec.Fingerprint()
	if fp == uuid.Nil {
		return nil, fmt.Errorf("%w: record has no fingerprint", types.ErrSchemaMismatch)
	}

	pickup, err := tripTime(rec["pickup_datetime"])
	if err != nil {
		return nil, fmt.Errorf("%w: pickup_datetime: %v", types.ErrSchemaMismatch, err)
	}

	var dropoff *time.Time
	if rec["dropoff_datetime"] != nil {
		t, err := tripTime(rec["dropoff_datetime"])
		if err != nil {
			return nil, fmt.Errorf("%w: dropoff_datetime: %v", types.ErrSchemaMismatch, err)
		}
		dropoff = &t
	}

	payload := make(map[string]any, len(rec))
	for k, v := range rec {
		if k == types.FingerprintField {
			continue
		}
		payload[k] = v
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var runRef *uuid.UUID
	if runID != uuid.Nil {
		runRef = &runID
	}

	return []any{
		fp,
		textOrNil(rec["vendor_id"]),
		pickup,
		dropoff,
		textOrNil(rec["pu_location_id"]),
		textOrNil(rec["do_location_id"]),
		intOrNil(rec["passenger_count"]),
		floatOrNil(rec["trip_distance"]),
		textOrNil(rec["payment_type"]),
		floatOrNil(rec["fare_amount"]),
		floatOrNil(rec["tip_amount"]),
		floatOrNil(rec["tolls_amount"]),
		floatOrNil(rec["total_amount"]),
		payloadJSON,
		runRef,
	}, nil
}

func tripTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, x); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", x)
	default:
		return time.Time{}, fmt.Errorf("not a timestamp: %v", v)
	}
}

func textOrNil(v any) *string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return &x
	case float64:
		s := strconv.FormatFloat(x, 'g', -1, 64)
		return &s
	case int:
		s := strconv.Itoa(x)
		return &s
	default:
		s := fmt.Sprintf("%v", x)
		return &s
	}
}

func floatOrNil(v any) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case int:
		f := float64(x)
		return &f
	default:
		return nil
	}
}

func intOrNil(v any) *int {
	switch x := v.(type) {
	case float64:
		i := int(x)
		return &i
	case int:
		return &x
	default:
		return nil
	}
}
