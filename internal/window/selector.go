// Package window computes the incremental scope for one loader run: the
// half-open [start, end) range of the monotonic column to (re)process.
package window

import (
	"fmt"
	"time"

	"github.com/jonathan/trip-loader/internal/types"
)

// Selector derives run windows from a configured granularity and epoch.
type Selector struct {
	granularity types.Granularity
	epoch       time.Time
}

// NewSelector builds a Selector. The epoch is the start of the very first
// window when no prior successful run exists; it must sit on a granularity
// boundary.
func NewSelector(g types.Granularity, epoch time.Time) (*Selector, error) {
	if !aligned(epoch, g) {
		return nil, fmt.Errorf("%w: epoch %s is not aligned to %s boundary",
			types.ErrInvalidWindow, epoch.Format(time.RFC3339), g)
	}
	return &Selector{granularity: g, epoch: epoch}, nil
}

// Next returns the window immediately following the last successful one,
// sized to one granularity unit. With no prior success (nil last), the
// window starts at the configured epoch. Consecutive calls over successive
// successful runs produce contiguous, non-overlapping windows.
func (s *Selector) Next(last *types.Window) types.Window {
	start := s.epoch
	if last != nil {
		start = last.End
	}
	return types.Window{Start: start, End: s.advance(start)}
}

// Backfill returns an explicit window for reprocessing a historical range.
// The range may overlap previously loaded windows; re-merging is safe
// because the target is keyed by fingerprint. Bounds must be ordered and
// land on granularity boundaries: partial trailing windows are rejected
// rather than silently widened.
func (s *Selector) Backfill(start, end time.Time) (types.Window, error) {
	if !start.Before(end) {
		return types.Window{}, fmt.Errorf("%w: start %s is not before end %s",
			types.ErrInvalidWindow, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if !aligned(start, s.granularity) || !aligned(end, s.granularity) {
		return types.Window{}, fmt.Errorf("%w: bounds must align to %s boundaries",
			types.ErrInvalidWindow, s.granularity)
	}
	return types.Window{Start: start, End: end}, nil
}

// advance moves t forward by one granularity unit.
func (s *Selector) advance(t time.Time) time.Time {
	if s.granularity == types.GranularityMonth {
		return t.AddDate(0, 1, 0)
	}
	return t.AddDate(0, 0, 1)
}

// aligned reports whether t sits exactly on a granularity boundary in its
// own location.
func aligned(t time.Time, g types.Granularity) bool {
	if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
		return false
	}
	if g == types.GranularityMonth {
		return t.Day() == 1
	}
	return true
}
