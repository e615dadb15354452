// Package extract provides the upstream record sources the loader pulls
// from. Sources yield finite batches of raw records per window and have no
// side effects beyond reading.
package extract

import (
	"context"
	"fmt"

	"github.com/jonathan/trip-loader/internal/types"
)

// Source yields every raw record whose incremental column falls inside the
// window. Implementations must be pure readers.
type Source interface {
	Fetch(ctx context.Context, window types.Window) ([]types.Record, error)
}

// Error represents an error while pulling from an upstream source.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extract error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("extract error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
