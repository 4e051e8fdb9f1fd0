package slideshow

import (
	"sync/atomic"
	"time"

	"beacon/internal/model"
	"beacon/internal/telemetry"
)

// SpinnerFrames are the loading animation frames, advanced once per tick.
var SpinnerFrames = [...]string{"⠋", "⠙", "⠹", "⠸"}

// ImageState describes a URL from the presentation's point of view.
type ImageState string

const (
	ImageLoaded  ImageState = "loaded"
	ImagePending ImageState = "pending"
	ImageUnknown ImageState = "unknown"
)

// Snapshot is an immutable view of the engine state published after every
// handled tick or completion. Readers must not modify anything reachable
// from it.
type Snapshot struct {
	// Version changes whenever anything except the spinner changes.
	Version uint64
	// Generation counts successful refreshes.
	Generation uint64

	Events []model.Event
	Index  int

	SpinnerPhase int

	FetchInFlight    bool
	LastRefresh      time.Time
	LastSlideAdvance time.Time
	// LastError is the message of the most recent refresh failure, cleared
	// by the next successful refresh.
	LastError string

	images map[string][]byte
}

// Current returns the event on screen, or false before any events exist.
func (s *Snapshot) Current() (model.Event, bool) {
	if s == nil || len(s.Events) == 0 {
		return model.Event{}, false
	}
	return s.Events[s.Index], true
}

// Count is the number of events in the current generation.
func (s *Snapshot) Count() int {
	if s == nil {
		return 0
	}
	return len(s.Events)
}

// SpinnerFrame returns the loading glyph for the current phase.
func (s *Snapshot) SpinnerFrame() string {
	if s == nil {
		return SpinnerFrames[0]
	}
	return SpinnerFrames[s.SpinnerPhase%len(SpinnerFrames)]
}

// Image returns the loaded bytes for url; false means "still loading" or
// "not available", which render the same way.
func (s *Snapshot) Image(url string) ([]byte, bool) {
	if s == nil {
		return nil, false
	}
	d, ok := s.images[url]
	return d, ok
}

// ImageCount is the number of loaded images.
func (s *Snapshot) ImageCount() int {
	if s == nil {
		return 0
	}
	return len(s.images)
}

// ImageState reports whether url is loaded, referenced but not loaded, or
// not referenced by any current event.
func (s *Snapshot) ImageState(url string) ImageState {
	if _, ok := s.Image(url); ok {
		return ImageLoaded
	}
	if s == nil {
		return ImageUnknown
	}
	for _, ev := range s.Events {
		if ev.ImageURL == url && url != "" {
			return ImagePending
		}
	}
	return ImageUnknown
}

// publisher stores the latest snapshot and reuses the previous image map
// copy while the cache version is unchanged.
type publisher struct {
	images   map[string][]byte
	imagesAt uint64
	snap     atomic.Pointer[Snapshot]
}

// Snapshot returns the most recently published view. Never nil.
func (e *Engine) Snapshot() *Snapshot {
	return e.pub.snap.Load()
}

func (e *Engine) publish() {
	p := &e.pub
	if p.images == nil || p.imagesAt != e.cache.Version() {
		p.images = e.cache.Clone()
		p.imagesAt = e.cache.Version()
		telemetry.ImageCacheEntries.Set(float64(len(p.images)))
	}
	p.snap.Store(&Snapshot{
		Version:          e.version,
		Generation:       e.st.generation,
		Events:           e.st.events,
		Index:            e.st.currentIndex,
		SpinnerPhase:     e.st.spinnerPhase,
		FetchInFlight:    e.st.fetchInFlight,
		LastRefresh:      e.st.lastRefresh,
		LastSlideAdvance: e.st.lastSlideAdvance,
		LastError:        e.st.lastErr,
		images:           p.images,
	})
}
