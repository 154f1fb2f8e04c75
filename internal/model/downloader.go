package model

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mickekring/live-subtitles/internal/resilience"
)

// ProgressFunc receives byte-level download progress. total is zero when the
// server does not report a length and no catalog estimate exists.
type ProgressFunc func(done, total int64)

// Downloader fetches model artifacts into the local cache
type Downloader interface {
	// Download fetches the artifacts for info below cacheDir and returns the
	// final artifact path. onProgress may be nil.
	Download(ctx context.Context, info Info, cacheDir string, onProgress ProgressFunc) (string, error)
}

// HTTPDownloader downloads model artifacts over HTTP with retry on transient
// failures. The file is staged under a .partial name and renamed only once
// complete, so an interrupted download never passes an existence check.
type HTTPDownloader struct {
	client *http.Client
	retry  *resilience.RetryConfig
}

// NewHTTPDownloader creates a downloader with the given retry policy.
// A nil retry config uses defaults.
func NewHTTPDownloader(retry *resilience.RetryConfig) *HTTPDownloader {
	return &HTTPDownloader{
		client: &http.Client{
			// Per-request deadline comes from ctx; artifacts are large, so no
			// overall client timeout here.
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		retry: retry,
	}
}

func (d *HTTPDownloader) Download(ctx context.Context, info Info, cacheDir string, onProgress ProgressFunc) (string, error) {
	dest := ArtifactPath(cacheDir, info)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create model dir: %w", err)
	}

	partial := dest + ".partial"
	err := resilience.Retry(ctx, func() error {
		return d.fetch(ctx, info, partial, onProgress)
	}, d.retry, isTransient)
	if err != nil {
		os.Remove(partial)
		return "", fmt.Errorf("download model %s: %w", info.Name, err)
	}

	if err := os.Rename(partial, dest); err != nil {
		return "", fmt.Errorf("finalize model %s: %w", info.Name, err)
	}
	return dest, nil
}

func (d *HTTPDownloader) fetch(ctx context.Context, info Info, partial string, onProgress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &httpStatusError{status: resp.StatusCode, url: info.URL}
	}

	total := resp.ContentLength
	if total <= 0 {
		total = info.SizeBytes
	}

	f, err := os.Create(partial)
	if err != nil {
		return err
	}
	defer f.Close()

	var done int64
	buf := make([]byte, 256*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return err
			}
			done += int64(n)
			if onProgress != nil {
				onProgress(done, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}

	return f.Sync()
}

type httpStatusError struct {
	status int
	url    string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.status, e.url)
}

// isTransient treats network errors and server-side statuses as retryable;
// client errors (404, 403) are not going to fix themselves.
func isTransient(err error) bool {
	if se, ok := err.(*httpStatusError); ok {
		return se.status >= 500 || se.status == http.StatusTooManyRequests
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return false
	}
	return true
}
