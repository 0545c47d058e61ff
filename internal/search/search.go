package search

import (
	"strings"

	"eventcal/internal/model"
)

// Filter returns the events whose title contains query, ignoring case.
// A blank query returns events itself; any other query is matched as
// typed, surrounding spaces included. Relative order is preserved and the
// input is never modified.
func Filter(events []model.Event, query string) []model.Event {
	if strings.TrimSpace(query) == "" {
		return events
	}
	q := strings.ToLower(query)

	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if strings.Contains(strings.ToLower(ev.Title), q) {
			out = append(out, ev)
		}
	}
	return out
}
