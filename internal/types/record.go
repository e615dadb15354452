// Package types provides type definitions for structured data used throughout the trip-loader system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// Record represents one ingested row as a mapping of column name to scalar
// value. Values are the scalar types produced by JSON decoding (string,
// float64, bool, nil) plus time.Time and the integer types produced by
// typed sources.
type Record map[string]any

// Fingerprint returns the record's surrogate key, or uuid.Nil if the
// record has not been fingerprinted yet.
func (r Record) Fingerprint() uuid.UUID {
	v, ok := r[FingerprintField]
	if !ok {
		return uuid.Nil
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

// FingerprintField is the reserved column under which the computed
// surrogate key is stored on a record.
const FingerprintField = "fingerprint"

// String returns the string value of a field, or "" if absent or not a string.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// Time returns the time value of a field, or the zero time if absent or
// not parseable. String values are parsed as RFC 3339.
func (r Record) Time(field string) time.Time {
	switch v := r[field].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
