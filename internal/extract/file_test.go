package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeJSONL(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trips.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestFileSourceReadsAllLines(t *testing.T) {
	path := writeJSONL(t, []string{
		`{"pickup_datetime": "2019-01-15T08:30:00Z", "total_amount": 17.3}`,
		``,
		`{"pickup_datetime": "2019-01-16T10:00:00Z", "total_amount": 9.8}`,
	})

	source := NewFileSource(path, "")
	records, err := source.Fetch(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (blank lines skipped)", len(records))
	}
	if records[0].Time("pickup_datetime").Day() != 15 {
		t.Errorf("first record = %v", records[0])
	}
}

func TestFileSourceFiltersToWindow(t *testing.T) {
	path := writeJSONL(t, []string{
		`{"pickup_datetime": "2018-12-31T23:59:00Z"}`,
		`{"pickup_datetime": "2019-01-15T08:30:00Z"}`,
		`{"pickup_datetime": "2019-02-01T00:00:00Z"}`,
	})

	source := NewFileSource(path, "pickup_datetime")
	records, err := source.Fetch(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (half-open window)", len(records))
	}
	if got := records[0].Time("pickup_datetime"); got.Month() != time.January || got.Day() != 15 {
		t.Errorf("kept wrong record: %v", records[0])
	}
}

func TestFileSourceInvalidJSON(t *testing.T) {
	path := writeJSONL(t, []string{
		`{"pickup_datetime": "2019-01-15T08:30:00Z"}`,
		`{this is not json}`,
	})

	source := NewFileSource(path, "")
	if _, err := source.Fetch(context.Background(), testWindow()); err == nil {
		t.Error("expected error for malformed line")
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	source := NewFileSource(filepath.Join(t.TempDir(), "absent.jsonl"), "")
	if _, err := source.Fetch(context.Background(), testWindow()); err == nil {
		t.Error("expected error for missing file")
	}
}
