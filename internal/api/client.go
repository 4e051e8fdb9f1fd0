package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"beacon/internal/htmltext"
	appLog "beacon/internal/log"
	"beacon/internal/model"
)

// Timeout bounds a single events request.
const Timeout = 10 * time.Second

const upcomingPath = "/api/events/upcoming"

// ErrUnsuccessful is returned when the API answers 2xx with success=false.
var ErrUnsuccessful = errors.New("api: request reported success=false")

// EventRecord is one event as served by the events API.
type EventRecord struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Location      string    `json:"location"`
	LocationURL   *string   `json:"location_url"`
	Image         *string   `json:"image"`
	Thumbnail     *string   `json:"thumbnail"`
	Category      string    `json:"category"`
	IsFeatured    bool      `json:"is_featured"`
	RecurringType *string   `json:"recurring_type"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type envelope struct {
	Success bool          `json:"success"`
	Data    []EventRecord `json:"data"`
}

// Client fetches upcoming events from the events API.
type Client struct {
	client  *http.Client
	baseURL string
	loc     *time.Location
}

// NewClient creates a Client for baseURL. loc is the zone used for the
// slide date/time strings; nil means UTC.
func NewClient(baseURL string, loc *time.Location) *Client {
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		client:  &http.Client{Timeout: Timeout},
		baseURL: baseURL,
		loc:     loc,
	}
}

// WithHTTPClient replaces the underlying HTTP client (tests, custom transports).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

// FetchEvents returns the upcoming events sorted by start time.
// A non-2xx status, an undecodable body or success=false is an error.
func (c *Client) FetchEvents(ctx context.Context) ([]model.Event, error) {
	url := c.baseURL + upcomingPath
	reqID := uuid.NewString()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "max-age=60")
	req.Header.Set("X-Request-ID", reqID)

	appLog.Info("events fetch start", "url", url, "request_id", reqID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("api: unexpected status %s", resp.Status)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("api: decode response: %w", err)
	}
	if !env.Success {
		return nil, ErrUnsuccessful
	}

	events := make([]model.Event, 0, len(env.Data))
	for _, rec := range env.Data {
		events = append(events, ToEvent(rec, c.loc))
	}
	model.SortByStart(events)

	if len(events) == 0 {
		appLog.Warn("no upcoming events found", "request_id", reqID)
	} else {
		appLog.Info("events fetch success",
			"request_id", reqID,
			"count", len(events),
			"first", events[0].Date,
			"last", events[len(events)-1].Date,
		)
	}
	return events, nil
}

// ToEvent converts an API record into a display event.
func ToEvent(rec EventRecord, loc *time.Location) model.Event {
	return model.NewEvent(model.Event{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: htmltext.Plain(rec.Description),
		Start:       rec.StartTime,
		End:         rec.EndTime,
		Location:    rec.Location,
		LocationURL: deref(rec.LocationURL),
		ImageURL:    deref(rec.Image),
		Category:    rec.Category,
		Featured:    rec.IsFeatured,
	}, loc)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
