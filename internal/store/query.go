package store

import (
	"sort"
	"time"

	"eventcal/internal/dateutil"
	"eventcal/internal/model"
)

// EventsOnDay returns the events falling on day's calendar date, in the
// order given. Callers pass the filtered view for display.
func EventsOnDay(events []model.Event, day time.Time) []model.Event {
	var out []model.Event
	for _, ev := range events {
		if dateutil.SameDay(ev.Date, day) {
			out = append(out, ev)
		}
	}
	return out
}

// SortByTime returns a copy of events ordered by start time, then end time.
func SortByTime(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartTime == out[j].StartTime {
			return out[i].EndTime < out[j].EndTime
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

// GroupByDate buckets events by calendar day (keyed YYYY-MM-DD), each
// bucket sorted by time.
func GroupByDate(events []model.Event) map[string][]model.Event {
	groups := make(map[string][]model.Event)
	for _, ev := range events {
		key := ev.Date.Format(dateutil.DayLayout)
		groups[key] = append(groups[key], ev)
	}
	for key, bucket := range groups {
		groups[key] = SortByTime(bucket)
	}
	return groups
}
