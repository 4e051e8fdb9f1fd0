// Package imagefetch downloads slide images with a size guard.
package imagefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	appLog "beacon/internal/log"
)

const (
	// MaxImageSize is the largest image accepted, declared or actual.
	MaxImageSize = 2 * 1024 * 1024

	// Timeout bounds each request (HEAD and GET separately).
	Timeout = 5 * time.Second
)

// ErrTooLarge reports an image above MaxImageSize. It is never fatal; the
// slot simply stays unloaded.
var ErrTooLarge = errors.New("imagefetch: image exceeds size limit")

// Fetcher downloads images, collapsing concurrent requests for one URL.
type Fetcher struct {
	client  *http.Client
	maxSize int64
	group   singleflight.Group
}

// NewFetcher creates a Fetcher with the default timeout and size limit.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: Timeout},
		maxSize: MaxImageSize,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (f *Fetcher) WithHTTPClient(hc *http.Client) *Fetcher {
	f.client = hc
	return f
}

// FetchImage returns the raw bytes of url.
//
//   - A HEAD request runs first; a declared Content-Length above the limit
//     aborts with ErrTooLarge before any download.
//   - A HEAD answered with any non-2xx status means "size unknown"; only a
//     HEAD transport error fails the image.
//   - The GET body is read up to limit+1 bytes; anything larger is
//     discarded with ErrTooLarge.
//   - Network errors and non-2xx statuses are returned as errors; there is
//     no retry.
//
// Concurrent calls for the same url share one download, which runs under
// the ctx of the first caller. Callers that share a url should share a
// ctx lifetime.
func (f *Fetcher) FetchImage(ctx context.Context, url string) ([]byte, error) {
	v, err, shared := f.group.Do(url, func() (any, error) {
		return f.fetch(ctx, url)
	})
	if shared {
		appLog.Debug("image fetch shared with in-flight request", "url", url)
	}
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("imagefetch: empty url")
	}

	size, err := f.headSize(ctx, url)
	if err != nil {
		return nil, err
	}
	if size > f.maxSize {
		appLog.Warn("image too large, skipping download", "url", url, "size_kb", size/1024)
		return nil, ErrTooLarge
	}
	if size >= 0 {
		appLog.Debug("image size declared", "url", url, "size_kb", size/1024)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagefetch: get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("imagefetch: get: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("imagefetch: read body: %w", err)
	}
	if int64(len(body)) > f.maxSize {
		appLog.Warn("image too large after download, skipping", "url", url)
		return nil, ErrTooLarge
	}

	appLog.Info("image downloaded", "url", url, "bytes", len(body))
	return body, nil
}

// headSize returns the declared size of url, or -1 when unknown. Only a
// transport error is returned as an error.
func (f *Fetcher) headSize(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return -1, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return -1, fmt.Errorf("imagefetch: head: %w", err)
	}
	resp.Body.Close()

	// GET-only URLs (presigned object storage, some CDNs) reject HEAD with
	// 403/405/501; the GET decides.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		appLog.Debug("image HEAD rejected, size unknown", "url", url, "status", resp.StatusCode)
		return -1, nil
	}
	return resp.ContentLength, nil
}
