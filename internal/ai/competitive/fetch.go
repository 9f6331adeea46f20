package competitive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxFetchBytes caps fetched source content. Competitive articles and
// transcripts fit comfortably; anything larger is truncated, not rejected.
const maxFetchBytes = 512 * 1024

// Fetcher retrieves the raw text of a competitive source.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string) (string, error)
}

// HTTPFetcher fetches sources over plain HTTP.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher builds a fetcher with the given client. A nil client gets a
// default with a 30 second timeout.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{client: client}
}

// Fetch downloads the source and returns its body as text.
func (f *HTTPFetcher) Fetch(ctx context.Context, sourceURL string) (string, error) {
	parsed, err := url.Parse(sourceURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("source url %q is not a valid http url", sourceURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("Accept", "text/html, text/plain")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: status %d", sourceURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", sourceURL, err)
	}
	content := strings.TrimSpace(string(body))
	if content == "" {
		return "", fmt.Errorf("fetch %s: empty body", sourceURL)
	}
	return content, nil
}
