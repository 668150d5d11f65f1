// Package fetcher handles image provider requests: the Pexels JSON API,
// RSS/Atom media feeds, and raw image downloads.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"inspirepixel/internal/model"
)

const (
	userAgent     = "InspirePixel/1.0"
	maxPageBytes  = 5 * 1024 * 1024
	maxImageBytes = 20 * 1024 * 1024
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher performs GET requests against providers.
type Fetcher struct {
	client HTTPClient
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{client: client}
}

// Download fetches the bytes behind an image URL and reports its content type.
func (f *Fetcher) Download(ctx context.Context, url string) ([]byte, string, error) {
	body, header, err := f.get(ctx, url, nil, maxImageBytes)
	if err != nil {
		return nil, "", err
	}
	ct := header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(body)
	}
	return body, ct, nil
}

func (f *Fetcher) get(ctx context.Context, url string, header http.Header, limit int64) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("http get: %w: %w", model.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("%w: unexpected status %d", model.ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w: %w", model.ErrNetwork, err)
	}
	return body, resp.Header, nil
}
