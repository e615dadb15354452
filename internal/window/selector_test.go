package window

import (
	"errors"
	"testing"
	"time"

	"github.com/jonathan/trip-loader/internal/types"
)

func mustSelector(t *testing.T, g types.Granularity, epoch time.Time) *Selector {
	t.Helper()
	s, err := NewSelector(g, epoch)
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	return s
}

func TestNextWithNoPriorRun(t *testing.T) {
	epoch := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	s := mustSelector(t, types.GranularityMonth, epoch)

	w := s.Next(nil)
	wantEnd := time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC)
	if !w.Start.Equal(epoch) || !w.End.Equal(wantEnd) {
		t.Errorf("first window = %s, want [2019-01-01, 2019-02-01)", w)
	}
}

func TestNextIsContiguous(t *testing.T) {
	epoch := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		g    types.Granularity
		runs int
	}{
		{types.GranularityMonth, 14},
		{types.GranularityDay, 40},
	} {
		s := mustSelector(t, tc.g, epoch)

		var last *types.Window
		prevEnd := epoch
		for i := 0; i < tc.runs; i++ {
			w := s.Next(last)
			if !w.Start.Equal(prevEnd) {
				t.Fatalf("%s run %d: window %s does not start at previous end %s",
					tc.g, i, w, prevEnd.Format(time.RFC3339))
			}
			if !w.Start.Before(w.End) {
				t.Fatalf("%s run %d: empty window %s", tc.g, i, w)
			}
			prevEnd = w.End
			last = &w
		}
	}
}

func TestNextDayGranularity(t *testing.T) {
	epoch := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	s := mustSelector(t, types.GranularityDay, epoch)

	last := types.Window{
		Start: time.Date(2019, 6, 14, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2019, 6, 15, 0, 0, 0, 0, time.UTC),
	}
	w := s.Next(&last)
	if !w.Start.Equal(last.End) || !w.End.Equal(last.End.AddDate(0, 0, 1)) {
		t.Errorf("next day window = %s, want [2019-06-15, 2019-06-16)", w)
	}
}

func TestBackfillAllowsMultiUnitRange(t *testing.T) {
	epoch := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	s := mustSelector(t, types.GranularityMonth, epoch)

	start := time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	w, err := s.Backfill(start, end)
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if !w.Start.Equal(start) || !w.End.Equal(end) {
		t.Errorf("backfill window = %s, want [2019-03-01, 2019-06-01)", w)
	}
}

func TestBackfillRejectsBadBounds(t *testing.T) {
	epoch := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		g          types.Granularity
		start, end time.Time
	}{
		{
			name:  "start equals end",
			g:     types.GranularityMonth,
			start: time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "start after end",
			g:     types.GranularityMonth,
			start: time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "month bounds not on month boundary",
			g:     types.GranularityMonth,
			start: time.Date(2019, 3, 15, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2019, 4, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "day bounds carry time of day",
			g:     types.GranularityDay,
			start: time.Date(2019, 3, 1, 6, 0, 0, 0, time.UTC),
			end:   time.Date(2019, 3, 2, 6, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := mustSelector(t, tc.g, epoch)
			_, err := s.Backfill(tc.start, tc.end)
			if !errors.Is(err, types.ErrInvalidWindow) {
				t.Errorf("Backfill error = %v, want ErrInvalidWindow", err)
			}
		})
	}
}

func TestNewSelectorRejectsMisalignedEpoch(t *testing.T) {
	epoch := time.Date(2019, 1, 15, 0, 0, 0, 0, time.UTC)
	if _, err := NewSelector(types.GranularityMonth, epoch); !errors.Is(err, types.ErrInvalidWindow) {
		t.Errorf("NewSelector error = %v, want ErrInvalidWindow", err)
	}
}
