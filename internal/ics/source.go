// Package ics is the event source for kiosks fed by iCalendar
// subscriptions instead of the events API.
package ics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"beacon/internal/htmltext"
	appLog "beacon/internal/log"
	"beacon/internal/model"
)

const maxParallelFeeds = 4

// SourceOptions configures a Source.
type SourceOptions struct {
	// Horizon bounds how far ahead recurring events are expanded.
	Horizon time.Duration
	// Location is the display zone; UTC when nil.
	Location *time.Location
	// Now is the time source; time.Now when nil.
	Now func() time.Time
}

// Source loads upcoming events from a set of ICS feeds.
type Source struct {
	fetcher *Fetcher
	feeds   []Feed
	opts    SourceOptions
}

// NewSource creates a Source over feeds.
func NewSource(feeds []Feed, opts SourceOptions) *Source {
	if opts.Horizon <= 0 {
		opts.Horizon = 30 * 24 * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Source{fetcher: NewFetcher(), feeds: feeds, opts: opts}
}

// WithFetcher replaces the feed fetcher.
func (s *Source) WithFetcher(f *Fetcher) *Source {
	s.fetcher = f
	return s
}

// FetchEvents returns the occurrences of every feed that end at or after
// now and start within the horizon, sorted by start time. A failing feed
// is logged and skipped; the call fails only when every feed fails.
func (s *Source) FetchEvents(ctx context.Context) ([]model.Event, error) {
	if len(s.feeds) == 0 {
		return nil, errors.New("ics: no feeds configured")
	}

	now := s.opts.Now()
	win := Window{From: now, To: now.Add(s.opts.Horizon)}

	results := make([][]model.Event, len(s.feeds))
	errs := make([]error, len(s.feeds))

	var g errgroup.Group
	g.SetLimit(maxParallelFeeds)
	for i, feed := range s.feeds {
		i, feed := i, feed
		g.Go(func() error {
			events, err := s.loadFeed(ctx, feed, win)
			if err != nil {
				appLog.Error("ics feed failed", err, "id", feed.ID, "url", redactURL(feed.URL))
				errs[i] = fmt.Errorf("feed %q: %w", feed.ID, err)
				return nil
			}
			results[i] = events
			return nil
		})
	}
	_ = g.Wait()

	var (
		events []model.Event
		failed int
	)
	for i := range s.feeds {
		if errs[i] != nil {
			failed++
			continue
		}
		events = append(events, results[i]...)
	}
	if failed == len(s.feeds) {
		return nil, errors.Join(errs...)
	}

	model.SortByStart(events)
	appLog.Info("ics events loaded", "count", len(events), "feeds", len(s.feeds), "failed_feeds", failed)
	return events, nil
}

func (s *Source) loadFeed(ctx context.Context, feed Feed, win Window) ([]model.Event, error) {
	body, _, err := s.fetcher.Fetch(ctx, feed)
	if err != nil {
		return nil, err
	}
	parsed, err := Parse(feed, body)
	if err != nil {
		return nil, err
	}
	occs, err := Expand(parsed, win)
	if err != nil {
		return nil, err
	}

	events := make([]model.Event, 0, len(occs))
	for _, occ := range occs {
		events = append(events, s.toEvent(occ))
	}
	return events, nil
}

func (s *Source) toEvent(occ Occurrence) model.Event {
	ev := occ.Event
	start, end := occ.Start, occ.End
	if ev.AllDay {
		start = floatingDate(start, s.opts.Location)
		end = floatingDate(end, s.opts.Location)
	}

	prefix := ev.Feed.ID
	if prefix == "" {
		prefix = "ics"
	}

	return model.NewEvent(model.Event{
		ID:          prefix + "/" + ev.UID + "/" + start.UTC().Format(time.RFC3339),
		Title:       ev.Summary,
		Description: htmltext.Plain(ev.Description),
		Start:       start,
		End:         end,
		Location:    ev.Location,
		LocationURL: ev.URL,
		ImageURL:    ev.ImageURL,
		Category:    ev.Category,
	}, s.opts.Location)
}

// floatingDate re-anchors an all-day date at midnight in loc.
func floatingDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
