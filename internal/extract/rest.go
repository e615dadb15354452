package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonathan/trip-loader/internal/types"
)

// DefaultTimeout is the default HTTP request timeout per page.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "trip-loader/1.0"

// basePage is the first page number requested. The feed has no total
// count; pagination stops when a page comes back empty.
const basePage = 1

// RESTOptions configures the REST source.
type RESTOptions struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	PageSize  int
}

// DefaultRESTOptions returns sensible defaults for fetching.
func DefaultRESTOptions() *RESTOptions {
	return &RESTOptions{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// RESTSource pulls records from a paginated JSON endpoint. Each page is a
// JSON array of objects; window bounds are passed as query parameters.
type RESTSource struct {
	baseURL string
	opts    *RESTOptions
	client  *http.Client
}

// NewRESTSource builds a source for the given endpoint URL.
func NewRESTSource(baseURL string, opts *RESTOptions) (*RESTSource, error) {
	if opts == nil {
		opts = DefaultRESTOptions()
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &Error{URL: baseURL, Message: "invalid URL", Cause: err}
	}
	return &RESTSource{
		baseURL: baseURL,
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
	}, nil
}

// Fetch walks pages starting at basePage until the first empty page.
func (s *RESTSource) Fetch(ctx context.Context, window types.Window) ([]types.Record, error) {
	var records []types.Record
	for page := basePage; ; page++ {
		batch, err := s.fetchPage(ctx, window, page)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return records, nil
		}
		records = append(records, batch...)
	}
}

func (s *RESTSource) fetchPage(ctx context.Context, window types.Window, page int) ([]types.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL, nil)
	if err != nil {
		return nil, &Error{URL: s.baseURL, Message: "failed to create request", Cause: err}
	}

	q := req.URL.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("window_start", window.Start.UTC().Format(time.RFC3339))
	q.Set("window_end", window.End.UTC().Format(time.RFC3339))
	if s.opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(s.opts.PageSize))
	}
	req.URL.RawQuery = q.Encode()

	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &Error{URL: req.URL.String(), Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			URL:     req.URL.String(),
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: req.URL.String(), Message: "failed to read response body", Cause: err}
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &Error{URL: req.URL.String(), Message: "failed to decode page", Cause: err}
	}

	records := make([]types.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, types.Record(row))
	}
	return records, nil
}
