package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonathan/trip-loader/internal/types"
)

func testWindow() types.Window {
	return types.Window{
		Start: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRESTSourcePaginatesUntilEmptyPage(t *testing.T) {
	pages := map[string][]map[string]any{
		"1": {{"trip": "a"}, {"trip": "b"}},
		"2": {{"trip": "c"}},
		"3": {},
	}

	var requestedPages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		requestedPages = append(requestedPages, page)

		if got := r.URL.Query().Get("window_start"); got != "2019-01-01T00:00:00Z" {
			t.Errorf("window_start = %q", got)
		}
		if got := r.URL.Query().Get("window_end"); got != "2019-02-01T00:00:00Z" {
			t.Errorf("window_end = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pages[page])
	}))
	defer server.Close()

	source, err := NewRESTSource(server.URL, nil)
	if err != nil {
		t.Fatalf("NewRESTSource: %v", err)
	}

	records, err := source.Fetch(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("got %d records, want 3", len(records))
	}
	if len(requestedPages) != 3 || requestedPages[0] != "1" || requestedPages[2] != "3" {
		t.Errorf("requested pages = %v, want [1 2 3]", requestedPages)
	}
	if records[2].String("trip") != "c" {
		t.Errorf("records out of order: %v", records)
	}
}

func TestRESTSourceEmptyFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	defer server.Close()

	source, err := NewRESTSource(server.URL, nil)
	if err != nil {
		t.Fatalf("NewRESTSource: %v", err)
	}

	records, err := source.Fetch(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestRESTSourceHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	source, err := NewRESTSource(server.URL, nil)
	if err != nil {
		t.Fatalf("NewRESTSource: %v", err)
	}

	_, err = source.Fetch(context.Background(), testWindow())
	var extractErr *Error
	if !errors.As(err, &extractErr) {
		t.Fatalf("error = %v, want *extract.Error", err)
	}
}

func TestRESTSourceMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not": "an array"}`))
	}))
	defer server.Close()

	source, err := NewRESTSource(server.URL, nil)
	if err != nil {
		t.Fatalf("NewRESTSource: %v", err)
	}

	if _, err := source.Fetch(context.Background(), testWindow()); err == nil {
		t.Error("expected decode error for non-array page")
	}
}

func TestNewRESTSourceRejectsBadURL(t *testing.T) {
	for _, bad := range []string{"", "not a url", "/relative/path"} {
		if _, err := NewRESTSource(bad, nil); err == nil {
			t.Errorf("NewRESTSource(%q) should fail", bad)
		}
	}
}
