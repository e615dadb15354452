package types

import "errors"

// Sentinel errors forming the loader's error taxonomy. Callers classify
// failures with errors.Is and decide retry behavior per kind.
var (
	// ErrInvalidWindow indicates bad window bounds. Not retryable.
	ErrInvalidWindow = errors.New("invalid window")

	// ErrRunInProgress indicates another pending run holds the pipeline.
	// Callers should back off and retry later.
	ErrRunInProgress = errors.New("run already in progress")

	// ErrTargetUnavailable indicates the durable store could not be
	// reached. Transient; retryable with backoff.
	ErrTargetUnavailable = errors.New("target unavailable")

	// ErrSchemaMismatch indicates incoming records are incompatible with
	// the target schema. Fatal; requires intervention.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// Retryable reports whether an error kind is safe to retry automatically.
func Retryable(err error) bool {
	return errors.Is(err, ErrTargetUnavailable)
}
