package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSetupLoggerWithWritersFansOut(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("run started", "run_id", "abc", "rows", 42)

	if !strings.Contains(stderr.String(), "run started") {
		t.Errorf("stderr output missing message: %q", stderr.String())
	}

	var entry map[string]any
	if err := json.Unmarshal(file.Bytes(), &entry); err != nil {
		t.Fatalf("file output is not JSON: %v", err)
	}
	if entry["msg"] != "run started" || entry["run_id"] != "abc" {
		t.Errorf("JSON entry = %v", entry)
	}
}

func TestSetupLoggerWithWritersRespectsLevel(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelWarn)

	logger.Debug("noise")
	logger.Info("also noise")

	if stderr.Len() != 0 || file.Len() != 0 {
		t.Errorf("below-level logs were written: stderr=%q file=%q", stderr.String(), file.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
