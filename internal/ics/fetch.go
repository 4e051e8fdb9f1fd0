package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	appLog "beacon/internal/log"
)

// Timeout bounds a single feed request.
const Timeout = 15 * time.Second

// Feed is a single ICS subscription.
type Feed struct {
	// ID prefixes the IDs of the events built from this feed.
	ID string
	// URL is the ICS endpoint.
	URL string
	// Category is used for VEVENTs without CATEGORIES.
	Category string
}

// validator is the revalidation state kept for one feed URL.
type validator struct {
	etag         string
	lastModified string
	body         []byte
}

// Fetcher fetches ICS feeds and revalidates them with ETag /
// Last-Modified. Validators live in memory only.
type Fetcher struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]validator
}

// NewFetcher creates a Fetcher with the default timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: Timeout},
		cache:  make(map[string]validator),
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (f *Fetcher) WithHTTPClient(hc *http.Client) *Fetcher {
	f.client = hc
	return f
}

// Fetch returns the body of feed. A 304 answer reuses the body of the
// previous 200. Non-2xx answers fall back to that body when one exists.
func (f *Fetcher) Fetch(ctx context.Context, feed Feed) (body []byte, fromCache bool, err error) {
	if feed.URL == "" {
		return nil, false, errors.New("ics: feed URL is empty")
	}

	f.mu.Lock()
	prev, havePrev := f.cache[feed.URL]
	f.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "text/calendar")
	if prev.etag != "" {
		req.Header.Set("If-None-Match", prev.etag)
	}
	if prev.lastModified != "" {
		req.Header.Set("If-Modified-Since", prev.lastModified)
	}

	appLog.Debug("ics fetch start", "id", feed.ID, "url", redactURL(feed.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("ics: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if !havePrev {
			return nil, false, errors.New("ics: 304 Not Modified without a previous body")
		}
		appLog.Debug("ics feed not modified", "id", feed.ID, "url", redactURL(feed.URL))
		return prev.body, true, nil

	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, fmt.Errorf("ics: read body: %w", err)
		}
		f.mu.Lock()
		f.cache[feed.URL] = validator{
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
			body:         data,
		}
		f.mu.Unlock()
		appLog.Info("ics fetch success", "id", feed.ID, "url", redactURL(feed.URL), "bytes", len(data))
		return data, false, nil

	default:
		err := fmt.Errorf("ics: unexpected status %s", resp.Status)
		if havePrev {
			appLog.Warn("ics fetch failed, using previous body",
				"id", feed.ID, "url", redactURL(feed.URL), "status", resp.StatusCode)
			return prev.body, true, nil
		}
		return nil, false, err
	}
}

// redactURL keeps only scheme and host; subscription URLs often carry
// private tokens in the path or query.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
