package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

const calendar = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//beacon//test//EN
BEGIN:VEVENT
UID:concert
SUMMARY:Spring Concert
DESCRIPTION:<p>Bring a friend &amp\; snacks</p>
LOCATION:Fellowship Hall
URL:https://maps.example.org/hall
IMAGE;VALUE=URI:https://img.example.org/concert.png
CATEGORIES:Music,Worship
DTSTART:20250305T180000Z
DTEND:20250305T200000Z
END:VEVENT
BEGIN:VEVENT
UID:study
SUMMARY:Bible Study
DTSTART:20250301T150000Z
DTEND:20250301T160000Z
RRULE:FREQ=WEEKLY;COUNT=6
EXDATE:20250308T150000Z
END:VEVENT
BEGIN:VEVENT
UID:study
RECURRENCE-ID:20250315T150000Z
SUMMARY:Bible Study (moved)
DTSTART:20250315T170000Z
DTEND:20250315T180000Z
END:VEVENT
BEGIN:VEVENT
UID:past
SUMMARY:Already Over
DTSTART:20250201T100000Z
DTEND:20250201T110000Z
END:VEVENT
BEGIN:VEVENT
UID:picnic
SUMMARY:Picnic
DTSTART;VALUE=DATE:20250310
DTEND;VALUE=DATE:20250311
ATTACH;FMTTYPE=image/jpeg:https://img.example.org/picnic.jpg
END:VEVENT
BEGIN:VEVENT
SUMMARY:No UID
DTSTART:20250306T100000Z
END:VEVENT
END:VCALENDAR
`

func newFeedServer(t *testing.T, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestParse(t *testing.T) {
	events, err := Parse(Feed{ID: "church", Category: "General"}, []byte(calendar))
	require.NoError(t, err)
	require.Len(t, events, 5, "the VEVENT without UID is skipped")

	concert := events[0]
	assert.Equal(t, "Spring Concert", concert.Summary)
	assert.Equal(t, "<p>Bring a friend &amp; snacks</p>", concert.Description)
	assert.Equal(t, "https://img.example.org/concert.png", concert.ImageURL)
	assert.Equal(t, "Music", concert.Category)
	assert.Equal(t, "https://maps.example.org/hall", concert.URL)

	assert.Equal(t, "FREQ=WEEKLY;COUNT=6", events[1].RawRRule)
	assert.Len(t, events[1].ExDates, 1)
	assert.True(t, events[2].IsOverride())

	picnic := events[4]
	assert.True(t, picnic.AllDay)
	assert.Equal(t, "General", picnic.Category)
	assert.Equal(t, "https://img.example.org/picnic.jpg", picnic.ImageURL)
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse(Feed{}, nil)
	assert.Error(t, err)
}

func TestExpandAppliesExdatesAndOverrides(t *testing.T) {
	parsed, err := Parse(Feed{ID: "church"}, []byte(calendar))
	require.NoError(t, err)

	occs, err := Expand(parsed, Window{From: now, To: now.Add(30 * 24 * time.Hour)})
	require.NoError(t, err)

	var study []time.Time
	for _, o := range occs {
		if o.Event.UID == "study" {
			study = append(study, o.Start.UTC())
		}
	}
	assert.ElementsMatch(t, []time.Time{
		time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 15, 17, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 22, 15, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 29, 15, 0, 0, 0, time.UTC),
	}, study)

	for _, o := range occs {
		assert.NotEqual(t, "past", o.Event.UID)
	}
}

func TestExpandRejectsInvertedWindow(t *testing.T) {
	_, err := Expand(nil, Window{From: now, To: now.Add(-time.Hour)})
	assert.Error(t, err)
}

func TestSourceFetchEvents(t *testing.T) {
	srv, _ := newFeedServer(t, calendar)
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	src := NewSource([]Feed{{ID: "church", URL: srv.URL + "/feed.ics"}}, SourceOptions{
		Horizon:  30 * 24 * time.Hour,
		Location: loc,
		Now:      func() time.Time { return now },
	})

	events, err := src.FetchEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 6)

	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Start.Before(events[i-1].Start), "sorted by start")
	}

	concert := events[1]
	assert.Equal(t, "Spring Concert", concert.Title)
	assert.Equal(t, "Bring a friend & snacks", concert.Description)
	assert.Equal(t, "Wednesday, March 05, 2025", concert.Date)
	assert.Equal(t, "1:00 PM - 3:00 PM", concert.TimeRange())
	assert.True(t, concert.HasImage())
	assert.True(t, strings.HasPrefix(concert.ID, "church/concert/"))

	picnic := events[2]
	assert.Equal(t, "Picnic", picnic.Title)
	assert.Equal(t, "Monday, March 10, 2025", picnic.Date)
	assert.Equal(t, "12:00 AM", picnic.StartText)
}

func TestSourceRevalidatesWithETag(t *testing.T) {
	srv, hits := newFeedServer(t, calendar)
	src := NewSource([]Feed{{ID: "church", URL: srv.URL}}, SourceOptions{Now: func() time.Time { return now }})

	first, err := src.FetchEvents(context.Background())
	require.NoError(t, err)
	second, err := src.FetchEvents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, first, second, "a 304 reuses the previous body")
}

func TestSourceToleratesPartialFailure(t *testing.T) {
	good, _ := newFeedServer(t, calendar)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(bad.Close)

	src := NewSource([]Feed{
		{ID: "bad", URL: bad.URL},
		{ID: "good", URL: good.URL},
	}, SourceOptions{Now: func() time.Time { return now }})

	events, err := src.FetchEvents(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}

func TestSourceFailsWhenEveryFeedFails(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(bad.Close)

	src := NewSource([]Feed{{ID: "a", URL: bad.URL}, {ID: "b", URL: bad.URL + "/b"}}, SourceOptions{})
	_, err := src.FetchEvents(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `feed "a"`)
	assert.Contains(t, err.Error(), `feed "b"`)
}

func TestSourceWithoutFeeds(t *testing.T) {
	_, err := NewSource(nil, SourceOptions{}).FetchEvents(context.Background())
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://calendar.example.org/...(redacted)",
		redactURL("https://calendar.example.org/private/abc.ics?token=secret"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
