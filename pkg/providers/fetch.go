package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"gopkg.d7z.net/page-overlay/pkg/core"
)

// FetchError is a failed configuration fetch over HTTP.
type FetchError struct {
	Status int
	URL    string
	Cause  error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// HTTPFetcher loads configuration resources from a base URL.
type HTTPFetcher struct {
	base     string
	client   *http.Client
	maxBytes int64
}

var _ core.Fetcher = (*HTTPFetcher)(nil)

func NewHTTPFetcher(client *http.Client, base string, maxBytes int64) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = core.MaxFileLoadSize
	}
	return &HTTPFetcher{
		base:     strings.TrimSuffix(base, "/"),
		client:   client,
		maxBytes: maxBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	rawURL := f.base + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Cause: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, &FetchError{Status: resp.StatusCode, URL: rawURL, Cause: os.ErrNotExist}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Status: resp.StatusCode, URL: rawURL}
	}
	// Read at most maxBytes+1 to detect overflow deterministically.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &FetchError{Status: resp.StatusCode, URL: rawURL, Cause: errors.Wrap(err, "read body")}
	}
	if int64(len(body)) > f.maxBytes {
		return nil, &FetchError{Status: resp.StatusCode, URL: rawURL, Cause: core.ErrTooLarge}
	}
	return body, nil
}
