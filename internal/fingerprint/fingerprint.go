// Package fingerprint derives deterministic surrogate keys for ingested
// records. The fingerprint is the dedup and merge key: identical values
// across the configured key fields always produce the identical 128-bit
// value, regardless of how the record was represented in transit.
package fingerprint

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/trip-loader/internal/types"
)

// namespace fixes the SHA-1 UUID domain so fingerprints are stable across
// processes and releases.
var namespace = uuid.MustParse("8f8c3f9a-52d1-4c6e-9d30-7a1b40f5a8e2")

// fieldSep separates canonicalized field values. A control character keeps
// ("ab","c") and ("a","bc") from hashing identically.
const fieldSep = "\x1f"

// nullSentinel replaces missing or null key fields before concatenation.
// A record with a null field and one with an empty string therefore share
// a fingerprint; the dedup pattern this mirrors accepts that collision.
const nullSentinel = ""

// Compute returns the fingerprint of a record over the ordered key-field
// set. Pure: no side effects, and the record itself is not modified.
func Compute(rec types.Record, keyFields []string) uuid.UUID {
	var sb strings.Builder
	for i, field := range keyFields {
		if i > 0 {
			sb.WriteString(fieldSep)
		}
		sb.WriteString(canonical(rec[field]))
	}
	return uuid.NewSHA1(namespace, []byte(sb.String()))
}

// Stamp computes the fingerprint and stores it on a copy of the record
// under types.FingerprintField.
func Stamp(rec types.Record, keyFields []string) types.Record {
	out := rec.Clone()
	out[types.FingerprintField] = Compute(rec, keyFields)
	return out
}

// canonical renders a scalar as a stable string. JSON decoding yields
// string, float64, bool, and nil; typed sources may also supply integers
// and time.Time.
func canonical(v any) string {
	switch x := v.(type) {
	case nil:
		return nullSentinel
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", x)
	}
}
