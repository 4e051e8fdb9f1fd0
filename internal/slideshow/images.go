package slideshow

import (
	"context"
	"errors"

	"beacon/internal/imagefetch"
	appLog "beacon/internal/log"
	"beacon/internal/telemetry"
)

// HandleImageLoaded caches data under url. Applying the same completion
// twice leaves the cache unchanged.
func (e *Engine) HandleImageLoaded(url string, data []byte) {
	e.imageCompleted(url, data, nil, e.st.generation)
}

// HandleImageFailed leaves the slot for url empty for the rest of the
// current generation.
func (e *Engine) HandleImageFailed(url string, err error) {
	e.imageCompleted(url, nil, err, e.st.generation)
}

func (e *Engine) imageCompleted(url string, data []byte, err error, gen uint64) {
	if g, ok := e.pending[url]; ok && g == gen {
		delete(e.pending, url)
	}

	if err == nil && len(data) == 0 {
		err = errors.New("empty image body")
	}
	if err != nil {
		telemetry.ImageFetchTotal.WithLabelValues("unavailable").Inc()
		if gen == e.st.generation {
			e.failed[url] = struct{}{}
		}
		if errors.Is(err, imagefetch.ErrTooLarge) {
			appLog.Warn("image not available: too large", "url", url)
		} else {
			appLog.Error("image not available", err, "url", url)
		}
		return
	}

	// Stale completions from an older generation are cached too; normal
	// eviction removes them if no event references the URL.
	e.cache.Put(url, data)
	e.version++
	telemetry.ImageFetchTotal.WithLabelValues("loaded").Inc()
	appLog.Info("image loaded", "url", url, "bytes", len(data), "stale", gen != e.st.generation)
}

// evictUnreachable drops cached images that belong neither to the event
// at index next nor to any event in the list.
func (e *Engine) evictUnreachable(next int) {
	reachable := make(map[string]struct{}, len(e.st.events)+1)
	if u := e.st.events[next].ImageURL; u != "" {
		reachable[u] = struct{}{}
	}
	for _, ev := range e.st.events {
		if ev.ImageURL != "" {
			reachable[ev.ImageURL] = struct{}{}
		}
	}
	evicted := e.cache.Retain(func(url string) bool {
		_, ok := reachable[url]
		return ok
	})
	for _, url := range evicted {
		appLog.Info("removing unused image", "url", url)
	}
	if len(evicted) > 0 {
		e.version++
	}
}

// requestImage dispatches a fetch for url unless it is loaded, already in
// flight for this generation, or failed in this generation.
func (e *Engine) requestImage(url string) {
	if e.cache.Has(url) {
		appLog.Debug("image already loaded", "url", url)
		return
	}
	if g, ok := e.pending[url]; ok && g == e.st.generation {
		return
	}
	if _, ok := e.failed[url]; ok {
		return
	}

	gen := e.st.generation
	e.pending[url] = gen
	src := e.images
	appLog.Debug("starting image load", "url", url, "generation", gen)
	e.spawn(job{url: url, run: func(ctx context.Context) completion {
		data, err := src.FetchImage(ctx, url)
		return imageDone{url: url, data: data, err: err, generation: gen}
	}})
}
