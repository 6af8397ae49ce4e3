package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ppiankov/fratlas/internal/sim"
)

const (
	fetchAttempts  = 3
	fetchBaseDelay = time.Second
)

// Fetcher downloads scans from remote URLs, e.g. files sent to the bot
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	clock      sim.Clock
}

// NewFetcher creates a Fetcher. Bodies are cut at maxBytes+1 so the upload
// store can still tell an oversized file from one at the limit.
func NewFetcher(client *http.Client, userAgent string, maxBytes int64, clock sim.Clock) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: time.Minute}
	}
	if clock == nil {
		clock = sim.SystemClock{}
	}
	return &Fetcher{
		httpClient: client,
		userAgent:  userAgent,
		maxBytes:   maxBytes,
		clock:      clock,
	}
}

// FetchResult is a downloaded scan
type FetchResult struct {
	Body        []byte
	ContentType string
	Name        string // Last path segment of the final URL
	FinalURL    string
}

// Fetch downloads rawURL once
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		// File URLs may embed credentials; keep them out of the error
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := resp.Request.URL.String()
	return &FetchResult{
		Body:        data,
		ContentType: resp.Header.Get("Content-Type"),
		Name:        nameFromURL(finalURL),
		FinalURL:    finalURL,
	}, nil
}

// FetchWithRetry downloads rawURL, retrying transient failures with
// exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	delay := fetchBaseDelay

	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryableFetchError(err) || attempt == fetchAttempts {
			break
		}
		if err := f.clock.Sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}

	return nil, lastErr
}

// isRetryableFetchError reports whether a failed fetch may succeed later:
// server errors, rate limiting and transport failures
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := err.Error()
	if strings.HasPrefix(msg, "unexpected status: ") {
		code := strings.TrimPrefix(msg, "unexpected status: ")
		return strings.HasPrefix(code, "5") || strings.HasPrefix(code, "429")
	}
	return strings.HasPrefix(msg, "fetch: ")
}

// nameFromURL returns the last path segment, unescaped
func nameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	p := strings.Trim(parsed.Path, "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}
