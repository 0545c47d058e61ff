// Package ics converts events to and from iCalendar feeds.
package ics

import (
	"fmt"
	"io"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"eventcal/internal/model"
)

// Properties carrying recurrence metadata that iCalendar has no slot for.
const (
	propGroup       = ical.ComponentProperty("X-EVENTCAL-GROUP")
	propIndex       = ical.ComponentProperty("X-EVENTCAL-INDEX")
	propRecurrence  = ical.ComponentProperty("X-EVENTCAL-RECURRENCE")
	propOccurrences = ical.ComponentProperty("X-EVENTCAL-OCCURRENCES")
)

const (
	productID = "-//eventcal//eventcal//EN"
	// Floating local date-time, no TZID and no trailing Z.
	floatingLayout = "20060102T150405"
)

// Export writes events as a VCALENDAR with one VEVENT per instance.
// Times are floating local times.
func Export(w io.Writer, events []model.Event) error {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)

	stamp := time.Now()
	for _, ev := range events {
		start, err := wallClock(ev.Date, ev.StartTime)
		if err != nil {
			return fmt.Errorf("export event %s: %w", ev.ID, err)
		}
		end, err := wallClock(ev.Date, ev.EndTime)
		if err != nil {
			return fmt.Errorf("export event %s: %w", ev.ID, err)
		}

		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(stamp)
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		ve.AddCategory(string(ev.Category))
		ve.SetProperty(ical.ComponentPropertyDtStart, start.Format(floatingLayout))
		ve.SetProperty(ical.ComponentPropertyDtEnd, end.Format(floatingLayout))

		if ev.Recurrence.Recurring() {
			ve.SetProperty(propRecurrence, string(ev.Recurrence))
			ve.SetProperty(propOccurrences, strconv.Itoa(ev.RecurrenceOptions.Occurrences))
		}
		if ev.InGroup() {
			ve.SetProperty(propGroup, ev.RecurrenceGroup)
			ve.SetProperty(propIndex, strconv.Itoa(ev.RecurrenceIndex))
		}
	}

	if err := cal.SerializeTo(w); err != nil {
		return fmt.Errorf("serialize calendar: %w", err)
	}
	return nil
}

// wallClock combines the calendar day of date with an HH:MM time.
func wallClock(date time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", hhmm, err)
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, time.Local), nil
}
