package types

import (
	"fmt"
	"time"
)

// Granularity is the unit size of one incremental window.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)

// ParseGranularity converts a config string into a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case GranularityDay, GranularityMonth:
		return Granularity(s), nil
	default:
		return "", fmt.Errorf("unknown granularity %q (want day or month)", s)
	}
}

// Window is a half-open interval [Start, End) over the incremental column.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZero reports whether the window is unset.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Contains reports whether t falls inside the half-open interval.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}
