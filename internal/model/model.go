package model

import (
	"slices"
	"strings"
	"time"
)

const (
	dateLayout = "Monday, January 02, 2006"
	timeLayout = "03:04 PM"
)

// Event is one upcoming occurrence shown as a slide. Sources build it in
// bulk; it is never modified afterwards.
type Event struct {
	ID    string
	Title string

	// Description is plain text (HTML already stripped).
	Description string

	// Start / End are instants; Start <= End.
	Start time.Time
	End   time.Time

	// Human-formatted strings derived from Start / End in the display zone.
	Date      string
	StartText string
	EndText   string

	Location    string
	LocationURL string

	// ImageURL is empty when the event has no image.
	ImageURL string

	Category string
	Featured bool
}

// HasImage reports whether the event references an image.
func (e Event) HasImage() bool {
	return e.ImageURL != ""
}

// TimeRange returns "StartText - EndText".
func (e Event) TimeRange() string {
	return e.StartText + " - " + e.EndText
}

// Schedule holds the display strings for an event's time span.
type Schedule struct {
	Date      string
	StartText string
	EndText   string
}

// FormatSchedule renders start/end in loc (UTC when nil), e.g.
// "Sunday, March 02, 2025" and "9:30 AM".
func FormatSchedule(start, end time.Time, loc *time.Location) Schedule {
	if loc == nil {
		loc = time.UTC
	}
	s := start.In(loc)
	e := end.In(loc)
	return Schedule{
		Date:      s.Format(dateLayout),
		StartText: formatClock(s),
		EndText:   formatClock(e),
	}
}

// NewEvent fills the derived display fields of ev from its Start/End and
// clamps End to Start when a source reports an inverted span.
func NewEvent(ev Event, loc *time.Location) Event {
	ev.Start = ev.Start.UTC()
	ev.End = ev.End.UTC()
	if ev.End.Before(ev.Start) {
		ev.End = ev.Start
	}
	sch := FormatSchedule(ev.Start, ev.End, loc)
	ev.Date = sch.Date
	ev.StartText = sch.StartText
	ev.EndText = sch.EndText
	return ev
}

func formatClock(t time.Time) string {
	return strings.TrimLeft(t.Format(timeLayout), "0")
}

// SortByStart orders events by start time in place, keeping source order
// for equal timestamps.
func SortByStart(events []Event) {
	slices.SortStableFunc(events, func(a, b Event) int {
		return a.Start.Compare(b.Start)
	})
}
