// Package slideshow is the synchronization and scheduling engine of the
// kiosk: a single-owner state machine driven by a fixed-rate tick that
// decides when to reload events, when to advance slides and which images
// to load or evict.
//
// All state is mutated by one goroutine (the one running Run). Network
// work runs in background goroutines whose results come back as
// completions on a channel and are applied one at a time, never
// concurrently with a tick.
package slideshow

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	appLog "beacon/internal/log"
	"beacon/internal/model"
	"beacon/internal/telemetry"
)

// DefaultTickInterval is the recommended tick period.
const DefaultTickInterval = 100 * time.Millisecond

// EventSource loads the full list of upcoming events.
type EventSource interface {
	FetchEvents(ctx context.Context) ([]model.Event, error)
}

// ImageSource loads the raw bytes of one image. Any error means "not
// available" to the engine.
type ImageSource interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// Options configures an Engine. Zero durations fall back to defaults.
type Options struct {
	SlideInterval   time.Duration
	RefreshInterval time.Duration
	TickInterval    time.Duration
	// Now is the time source; time.Now when nil.
	Now func() time.Time
}

// state is the slideshow state owned by the engine.
type state struct {
	events           []model.Event
	currentIndex     int
	lastSlideAdvance time.Time
	lastRefresh      time.Time
	fetchInFlight    bool
	spinnerPhase     int

	generation uint64
	lastErr    string
}

// job is one unit of background work. url is empty for refreshes.
type job struct {
	url string
	run func(ctx context.Context) completion
}

// completion is the result of a job, applied on the owner goroutine.
type completion interface {
	apply(e *Engine)
}

type eventsLoaded struct{ events []model.Event }

func (c eventsLoaded) apply(e *Engine) { e.HandleEventsLoaded(c.events) }

type refreshFailed struct{ err error }

func (c refreshFailed) apply(e *Engine) { e.HandleRefreshError(c.err) }

type imageDone struct {
	url        string
	data       []byte
	err        error
	generation uint64
}

func (c imageDone) apply(e *Engine) { e.imageCompleted(c.url, c.data, c.err, c.generation) }

// Engine owns the slideshow state and the image cache.
type Engine struct {
	events EventSource
	images ImageSource
	opts   Options

	st    state
	cache *ImageCache
	// pending maps URLs with an image fetch in flight to the generation
	// that dispatched it.
	pending map[string]uint64
	// failed holds URLs whose fetch failed in the current generation; they
	// are not retried until the next successful refresh.
	failed map[string]struct{}

	ctx         context.Context
	spawn       func(job)
	completions chan completion
	done        chan struct{}
	running     atomic.Bool

	version uint64
	pub     publisher
}

// New creates an engine. Both the last refresh and the last slide advance
// start at construction time; Run issues the first refresh immediately.
func New(events EventSource, images ImageSource, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.SlideInterval <= 0 {
		opts.SlideInterval = 10 * time.Second
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 5 * time.Minute
	}

	now := opts.Now()
	e := &Engine{
		events:      events,
		images:      images,
		opts:        opts,
		cache:       NewImageCache(),
		pending:     make(map[string]uint64),
		failed:      make(map[string]struct{}),
		ctx:         context.Background(),
		completions: make(chan completion, 64),
		done:        make(chan struct{}),
		st: state{
			lastSlideAdvance: now,
			lastRefresh:      now,
		},
	}
	e.spawn = e.spawnGoroutine
	e.publish()
	return e
}

// Run drives the engine until ctx is cancelled: it dispatches the startup
// refresh, then handles ticks and completions one at a time and publishes
// a snapshot after each. Run may be called only once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("slideshow: engine already running")
	}
	e.ctx = ctx
	defer close(e.done)

	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()

	appLog.Info("slideshow engine started",
		"slide_interval", e.opts.SlideInterval.String(),
		"refresh_interval", e.opts.RefreshInterval.String(),
		"tick_interval", e.opts.TickInterval.String(),
	)

	e.startRefresh()
	e.publish()

	for {
		select {
		case <-ctx.Done():
			appLog.Info("slideshow engine stopped")
			return ctx.Err()
		case <-ticker.C:
			e.Tick()
		case c := <-e.completions:
			c.apply(e)
		}
		e.publish()
	}
}

// Tick advances the spinner, then starts a refresh and/or advances the
// slide when they are due. It never blocks.
func (e *Engine) Tick() {
	now := e.opts.Now()
	e.st.spinnerPhase = (e.st.spinnerPhase + 1) % len(SpinnerFrames)

	if now.Sub(e.st.lastRefresh) >= e.opts.RefreshInterval {
		if e.st.fetchInFlight {
			telemetry.RefreshSkippedTotal.Inc()
		} else {
			appLog.Info("refresh due, starting event fetch",
				"since_last", now.Sub(e.st.lastRefresh).Round(time.Second).String())
			e.startRefresh()
		}
	}

	if len(e.st.events) > 0 && now.Sub(e.st.lastSlideAdvance) >= e.opts.SlideInterval {
		e.advance(now)
	}
}

// HandleEventsLoaded applies a successful refresh: the list is replaced
// (sorted by start time), the image cache is invalidated, the index is
// kept unless out of range, and image loads are dispatched for the current
// event first and then for every other event.
func (e *Engine) HandleEventsLoaded(events []model.Event) {
	now := e.opts.Now()

	sorted := slices.Clone(events)
	model.SortByStart(sorted)

	e.cache.Clear()
	clear(e.pending)
	clear(e.failed)

	e.st.events = sorted
	if e.st.currentIndex >= len(sorted) {
		if len(sorted) > 0 {
			appLog.Info("resetting current event index", "from", e.st.currentIndex, "to", 0)
		}
		e.st.currentIndex = 0
	}
	e.st.fetchInFlight = false
	e.st.lastRefresh = now
	e.st.lastErr = ""
	e.st.generation++
	e.version++

	telemetry.RefreshTotal.WithLabelValues("success").Inc()
	telemetry.Events.Set(float64(len(sorted)))
	appLog.Info("events loaded", "count", len(sorted), "generation", e.st.generation)

	if len(sorted) == 0 {
		return
	}
	if cur := sorted[e.st.currentIndex]; cur.HasImage() {
		e.requestImage(cur.ImageURL)
	}
	for i, ev := range sorted {
		if i != e.st.currentIndex && ev.HasImage() {
			e.requestImage(ev.ImageURL)
		}
	}
}

// HandleRefreshError records a failed refresh. Events, index and the last
// refresh time are untouched so the next tick retries.
func (e *Engine) HandleRefreshError(err error) {
	e.st.fetchInFlight = false
	if err != nil {
		e.st.lastErr = err.Error()
	}
	e.version++

	telemetry.RefreshTotal.WithLabelValues("error").Inc()
	appLog.Error("event refresh failed; keeping previous events", err, "events", len(e.st.events))
}

func (e *Engine) startRefresh() {
	e.st.fetchInFlight = true
	e.version++
	src := e.events
	e.spawn(job{run: func(ctx context.Context) completion {
		events, err := src.FetchEvents(ctx)
		if err != nil {
			return refreshFailed{err: err}
		}
		return eventsLoaded{events: events}
	}})
}

func (e *Engine) advance(now time.Time) {
	next := (e.st.currentIndex + 1) % len(e.st.events)
	appLog.Debug("advancing slide", "from", e.st.currentIndex, "to", next)

	e.evictUnreachable(next)

	e.st.currentIndex = next
	e.st.lastSlideAdvance = now
	e.version++
	telemetry.SlideAdvanceTotal.Inc()

	if cur := e.st.events[next]; cur.HasImage() {
		e.requestImage(cur.ImageURL)
	}
}

// spawnGoroutine runs j in the background and hands its completion to Run.
// Completions that arrive after Run has returned are dropped.
func (e *Engine) spawnGoroutine(j job) {
	ctx := e.ctx
	go func() {
		c := j.run(ctx)
		select {
		case e.completions <- c:
		case <-e.done:
		}
	}()
}
