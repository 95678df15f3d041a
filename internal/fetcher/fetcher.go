// Package fetcher downloads provider-rendered artifacts to local disk.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// DownloadError reports a failed artifact download. Status is zero when
// the request itself failed before a response arrived.
type DownloadError struct {
	URL    string
	Status int
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("download %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

type Fetcher struct {
	client *http.Client
}

func New(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client}
}

// Download GETs a provider-signed URL and writes the full body to dest.
// The body is buffered before the write, so a failed download leaves no
// partial file behind.
func (f *Fetcher) Download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &DownloadError{URL: url, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return &DownloadError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DownloadError{URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &DownloadError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return &DownloadError{URL: url, Err: fmt.Errorf("write %s: %w", dest, err)}
	}
	return nil
}
