package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const upcomingBody = `{
  "success": true,
  "data": [
    {
      "id": "b",
      "title": "Choir Practice",
      "description": "<p>Open to <strong>all</strong> voices.</p>",
      "start_time": "2025-03-05T19:00:00Z",
      "end_time": "2025-03-05T20:30:00Z",
      "location": "Fellowship Hall",
      "location_url": null,
      "image": "https://cdn.example.org/choir.jpg",
      "thumbnail": null,
      "category": "Music",
      "is_featured": true,
      "recurring_type": "weekly",
      "created_at": "2025-01-01T00:00:00Z",
      "updated_at": "2025-01-02T00:00:00Z"
    },
    {
      "id": "a",
      "title": "Potluck",
      "description": "Bring a dish &amp; a friend",
      "start_time": "2025-03-02T17:00:00Z",
      "end_time": "2025-03-02T19:00:00Z",
      "location": "",
      "category": "Fellowship",
      "is_featured": false,
      "created_at": "2025-01-01T00:00:00Z",
      "updated_at": "2025-01-01T00:00:00Z"
    }
  ]
}`

func TestFetchEvents(t *testing.T) {
	var gotPath, gotCache, gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCache = r.Header.Get("Cache-Control")
		gotReqID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(upcomingBody))
	}))
	defer srv.Close()

	events, err := NewClient(srv.URL, nil).FetchEvents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/api/events/upcoming", gotPath)
	assert.Equal(t, "max-age=60", gotCache)
	assert.NotEmpty(t, gotReqID)

	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].ID, "events must be sorted by start time")
	assert.Equal(t, "Bring a dish & a friend", events[0].Description)
	assert.False(t, events[0].HasImage())
	assert.Equal(t, "Sunday, March 02, 2025", events[0].Date)
	assert.Equal(t, "5:00 PM - 7:00 PM", events[0].TimeRange())

	assert.Equal(t, "Open to all voices.", events[1].Description)
	assert.Equal(t, "https://cdn.example.org/choir.jpg", events[1].ImageURL)
	assert.True(t, events[1].Featured)
	assert.Equal(t, "Music", events[1].Category)
}

func TestFetchEventsErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{"success":true,"data":[]}`, nil},
		{"not found", http.StatusNotFound, ``, nil},
		{"bad json", http.StatusOK, `{"success":`, nil},
		{"unsuccessful", http.StatusOK, `{"success":false,"data":[]}`, ErrUnsuccessful},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			events, err := NewClient(srv.URL, nil).FetchEvents(context.Background())
			require.Error(t, err)
			assert.Nil(t, events)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			}
		})
	}
}

func TestFetchEventsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, nil).WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond})
	_, err := c.FetchEvents(context.Background())
	assert.Error(t, err)
}

func TestFetchEventsEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	defer srv.Close()

	events, err := NewClient(srv.URL, nil).FetchEvents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}
