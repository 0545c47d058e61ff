// Package conflict detects time overlaps between events on the same day.
package conflict

import (
	"fmt"

	"eventcal/internal/dateutil"
	"eventcal/internal/model"
)

// Warning is the advisory result shown before saving an overlapping event.
type Warning struct {
	Message string        `json:"message"`
	Events  []model.Event `json:"conflictingEvents"`
}

// NewWarning wraps conflicts in a Warning, or returns nil when there are none.
func NewWarning(conflicts []model.Event) *Warning {
	if len(conflicts) == 0 {
		return nil
	}
	return &Warning{
		Message: fmt.Sprintf("This event conflicts with %d existing event(s).", len(conflicts)),
		Events:  conflicts,
	}
}

// Overlaps reports whether a and b share any time on the same calendar day.
// Ranges are half-open: an event ending at 10:00 does not overlap one
// starting at 10:00. HH:MM strings compare correctly as text.
func Overlaps(a, b model.Event) bool {
	if !dateutil.SameDay(a.Date, b.Date) {
		return false
	}
	return a.StartTime < b.EndTime && a.EndTime > b.StartTime
}

// Find returns the events that overlap candidate, skipping candidate itself
// (matched by id) so that an edit does not conflict with its old version.
func Find(candidate model.Event, events []model.Event) []model.Event {
	var out []model.Event
	for _, ev := range events {
		if ev.ID == candidate.ID {
			continue
		}
		if Overlaps(candidate, ev) {
			out = append(out, ev)
		}
	}
	return out
}
