package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "beacon/internal/log"
)

const defaultMaxOccurrences = 500

// Window is the closed time range occurrences must overlap.
type Window struct {
	From time.Time
	To   time.Time
	// MaxPerEvent caps the instances produced by one recurring VEVENT.
	// Zero means defaultMaxOccurrences.
	MaxPerEvent int
}

// Occurrence is one concrete instance of a ParsedEvent.
type Occurrence struct {
	Event ParsedEvent
	Start time.Time
	End   time.Time
}

// Expand turns parsed VEVENTs into the occurrences overlapping w.
//
// Overrides (VEVENTs with RECURRENCE-ID) remove the instance they replace
// from the base rule and are emitted as standalone occurrences, so moved
// instances land where the override puts them.
func Expand(events []ParsedEvent, w Window) ([]Occurrence, error) {
	if w.To.Before(w.From) {
		return nil, errors.New("ics: window ends before it starts")
	}
	if w.MaxPerEvent <= 0 {
		w.MaxPerEvent = defaultMaxOccurrences
	}

	replaced := make(map[string][]time.Time)
	for _, ev := range events {
		if ev.IsOverride() {
			replaced[ev.UID] = append(replaced[ev.UID], *ev.Recurrence)
		}
	}

	out := make([]Occurrence, 0, len(events))
	for _, ev := range events {
		switch {
		case ev.IsOverride() || ev.RawRRule == "":
			if overlaps(ev.Start, ev.End, w) {
				out = append(out, Occurrence{Event: ev, Start: ev.Start, End: ev.End})
			}
		default:
			out = append(out, expandRecurring(ev, replaced[ev.UID], w)...)
		}
	}
	return out, nil
}

func expandRecurring(ev ParsedEvent, replaced []time.Time, w Window) []Occurrence {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics: invalid RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}

	var set rrule.Set
	set.DTStart(ev.Start)
	set.RRule(r)
	loc := ev.Start.Location()
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(loc))
	}
	for _, rid := range replaced {
		set.ExDate(rid.In(loc))
	}

	dur := ev.End.Sub(ev.Start)
	// Start early enough to catch an instance already in progress at From.
	starts := set.Between(w.From.Add(-dur).In(loc), w.To.In(loc), true)
	if len(starts) > w.MaxPerEvent {
		appLog.Warn("ics: recurring event truncated", "uid", ev.UID, "instances", len(starts), "cap", w.MaxPerEvent)
		starts = starts[:w.MaxPerEvent]
	}

	out := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		e := s.Add(dur)
		if ev.AllDay {
			e = s.AddDate(0, 0, int(dur.Round(24*time.Hour)/(24*time.Hour)))
		}
		if overlaps(s, e, w) {
			out = append(out, Occurrence{Event: ev, Start: s, End: e})
		}
	}
	return out
}

func overlaps(start, end time.Time, w Window) bool {
	return !end.Before(w.From) && !start.After(w.To)
}
