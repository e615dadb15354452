package schemas

import (
	"errors"
	"testing"

	"github.com/jonathan/trip-loader/internal/types"
)

const tripSchema = `{
	"type": "object",
	"required": ["pickup_datetime", "total_amount"],
	"properties": {
		"pickup_datetime": {"type": "string"},
		"total_amount": {"type": "number"},
		"passenger_count": {"type": ["integer", "null"], "minimum": 0}
	}
}`

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidatorFromString(tripSchema)
	if err != nil {
		t.Fatalf("NewValidatorFromString: %v", err)
	}
	return v
}

func TestValidateRecordAccepts(t *testing.T) {
	v := newTestValidator(t)
	rec := types.Record{
		"pickup_datetime": "2019-01-15T08:30:00Z",
		"total_amount":    17.3,
		"passenger_count": float64(2),
	}
	if err := v.ValidateRecord(rec); err != nil {
		t.Errorf("ValidateRecord: %v", err)
	}
}

func TestValidateRecordRejectsWrongType(t *testing.T) {
	v := newTestValidator(t)
	rec := types.Record{
		"pickup_datetime": "2019-01-15T08:30:00Z",
		"total_amount":    "17.3",
	}
	err := v.ValidateRecord(rec)
	if err == nil {
		t.Fatal("expected validation failure for string total_amount")
	}
	if !errors.Is(err, types.ErrSchemaMismatch) {
		t.Errorf("error = %v, want to wrap ErrSchemaMismatch", err)
	}

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %T, want *ValidationError", err)
	}
	if len(ve.Errors) == 0 || ve.Errors[0].Field != "total_amount" {
		t.Errorf("field errors = %+v, want total_amount flagged", ve.Errors)
	}
}

func TestValidateRecordRejectsMissingRequired(t *testing.T) {
	v := newTestValidator(t)
	err := v.ValidateRecord(types.Record{"total_amount": 17.3})
	if !errors.Is(err, types.ErrSchemaMismatch) {
		t.Errorf("error = %v, want ErrSchemaMismatch", err)
	}
}

func TestValidateBatchReportsRecordIndex(t *testing.T) {
	v := newTestValidator(t)
	batch := []types.Record{
		{"pickup_datetime": "2019-01-15T08:30:00Z", "total_amount": 17.3},
		{"pickup_datetime": "2019-01-16T10:00:00Z", "total_amount": 9.8},
		{"pickup_datetime": "2019-01-17T11:00:00Z"},
	}
	err := v.ValidateBatch(batch)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if ve.RecordIndex != 2 {
		t.Errorf("RecordIndex = %d, want 2", ve.RecordIndex)
	}
}

func TestNewValidatorFromStringBadSchema(t *testing.T) {
	_, err := NewValidatorFromString(`{"type": 42}`)
	var le *SchemaLoadError
	if !errors.As(err, &le) {
		t.Errorf("error = %v, want *SchemaLoadError", err)
	}
}

func TestRepositoryTripSchemaCompiles(t *testing.T) {
	path := ResolveSchemaPath("schemas/trip.schema.json")
	if path == "" {
		t.Skip("trip.schema.json not found from test working directory")
	}
	v, err := NewValidator(path)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	rec := types.Record{
		"vendor_id":        "CMT",
		"pickup_datetime":  "2019-01-15T08:30:00Z",
		"dropoff_datetime": "2019-01-15T08:55:00Z",
		"pu_location_id":   float64(142),
		"do_location_id":   float64(236),
		"passenger_count":  float64(1),
		"trip_distance":    2.9,
		"payment_type":     "card",
		"fare_amount":      14.0,
		"total_amount":     17.3,
	}
	if err := v.ValidateRecord(rec); err != nil {
		t.Errorf("real trip record rejected: %v", err)
	}
}
