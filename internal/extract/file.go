package extract

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonathan/trip-loader/internal/types"
)

// FileSource reads records from a JSONL export, one JSON object per line.
// Used for offline backfills where the feed has already been dumped.
type FileSource struct {
	path string

	// TimestampField filters rows to the window when set. Empty means the
	// file is already scoped to one window and is read whole.
	TimestampField string
}

// NewFileSource builds a source over a JSONL file.
func NewFileSource(path, timestampField string) *FileSource {
	return &FileSource{path: path, TimestampField: timestampField}
}

func (s *FileSource) Fetch(ctx context.Context, window types.Window) ([]types.Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, &Error{URL: s.path, Message: "failed to open file", Cause: err}
	}
	defer func() { _ = f.Close() }()

	var records []types.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var row map[string]any
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, &Error{
				URL:     s.path,
				Message: fmt.Sprintf("invalid JSON on line %d", line),
				Cause:   err,
			}
		}

		rec := types.Record(row)
		if s.TimestampField != "" && !window.Contains(rec.Time(s.TimestampField)) {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, &Error{URL: s.path, Message: "failed to read file", Cause: err}
	}
	return records, nil
}
