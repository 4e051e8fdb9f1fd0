package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RefreshTotal counts completed event refreshes by result (success|error).
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_refresh_total",
		Help: "Completed event list refreshes by result.",
	}, []string{"result"})

	// RefreshSkippedTotal counts ticks where a refresh was due but one was
	// already in flight.
	RefreshSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_refresh_skipped_total",
		Help: "Due refreshes skipped because a refresh was already in flight.",
	})

	// ImageFetchTotal counts image fetch completions by result
	// (loaded|unavailable).
	ImageFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_image_fetch_total",
		Help: "Image fetch completions by result.",
	}, []string{"result"})

	ImageCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beacon_image_cache_entries",
		Help: "Images currently held in the in-memory cache.",
	})

	SlideAdvanceTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_slide_advance_total",
		Help: "Slide transitions.",
	})

	Events = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beacon_events",
		Help: "Events in the current slideshow generation.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
