package fingerprint

import (
	"testing"

	"github.com/google/uuid"

	"github.com/jonathan/trip-loader/internal/types"
)

var tripKeyFields = []string{"pickup_datetime", "dropoff_datetime", "pu_location_id", "do_location_id", "total_amount"}

func TestComputeDeterminism(t *testing.T) {
	rec := types.Record{
		"pickup_datetime":  "2019-01-15T08:30:00Z",
		"dropoff_datetime": "2019-01-15T08:55:00Z",
		"pu_location_id":   float64(142),
		"do_location_id":   float64(236),
		"total_amount":     17.3,
	}

	first := Compute(rec, tripKeyFields)
	second := Compute(rec, tripKeyFields)
	if first != second {
		t.Errorf("same record hashed twice: %s != %s", first, second)
	}
	if first == uuid.Nil {
		t.Error("fingerprint is the nil UUID")
	}
}

func TestComputeIgnoresNonKeyFields(t *testing.T) {
	base := types.Record{
		"pickup_datetime":  "2019-01-15T08:30:00Z",
		"dropoff_datetime": "2019-01-15T08:55:00Z",
		"pu_location_id":   float64(142),
		"do_location_id":   float64(236),
		"total_amount":     17.3,
	}
	withExtra := base.Clone()
	withExtra["_loaded_from"] = "page-7"
	withExtra["source_timestamp"] = "2019-02-01T00:00:00Z"

	if Compute(base, tripKeyFields) != Compute(withExtra, tripKeyFields) {
		t.Error("records differing only in non-key fields should collide")
	}
}

func TestComputeDiffersOnKeyFieldChange(t *testing.T) {
	a := types.Record{
		"pickup_datetime": "2019-01-15T08:30:00Z",
		"total_amount":    17.3,
	}
	b := a.Clone()
	b["total_amount"] = 17.4

	if Compute(a, tripKeyFields) == Compute(b, tripKeyFields) {
		t.Error("records with different key-field values should not collide")
	}
}

func TestComputeNullAndEmptyStringCollide(t *testing.T) {
	// Null coalescing to the empty sentinel means these two records are
	// the same key on purpose.
	withNull := types.Record{"pickup_datetime": "2019-01-15T08:30:00Z", "pu_location_id": nil}
	withEmpty := types.Record{"pickup_datetime": "2019-01-15T08:30:00Z", "pu_location_id": ""}
	missing := types.Record{"pickup_datetime": "2019-01-15T08:30:00Z"}

	fields := []string{"pickup_datetime", "pu_location_id"}
	fpNull := Compute(withNull, fields)
	if fpNull != Compute(withEmpty, fields) {
		t.Error("null and empty-string key field should collide")
	}
	if fpNull != Compute(missing, fields) {
		t.Error("null and absent key field should collide")
	}
}

func TestComputeSeparatorPreventsShifting(t *testing.T) {
	// ("ab", "c") must not hash like ("a", "bc").
	fields := []string{"f1", "f2"}
	a := Compute(types.Record{"f1": "ab", "f2": "c"}, fields)
	b := Compute(types.Record{"f1": "a", "f2": "bc"}, fields)
	if a == b {
		t.Error("adjacent field values shifted across the boundary should not collide")
	}
}

func TestComputeNumericRepresentations(t *testing.T) {
	// An integer-typed source and a JSON-decoded float64 describe the
	// same value and must share a fingerprint.
	fields := []string{"pu_location_id"}
	asInt := Compute(types.Record{"pu_location_id": 142}, fields)
	asFloat := Compute(types.Record{"pu_location_id": float64(142)}, fields)
	if asInt != asFloat {
		t.Error("integer and float representations of the same value should collide")
	}
}

func TestStampLeavesOriginalUntouched(t *testing.T) {
	rec := types.Record{"pickup_datetime": "2019-01-15T08:30:00Z"}
	stamped := Stamp(rec, []string{"pickup_datetime"})

	if _, ok := rec[types.FingerprintField]; ok {
		t.Error("Stamp mutated the input record")
	}
	if stamped.Fingerprint() == uuid.Nil {
		t.Error("stamped record has no fingerprint")
	}
	if stamped.Fingerprint() != Compute(rec, []string{"pickup_datetime"}) {
		t.Error("stamped fingerprint does not match Compute")
	}
}
