// Package dateutil holds the calendar date helpers: formatting, parsing,
// month bucketing and recurring date generation. All values are local
// wall-clock dates; no timezone conversion happens here.
package dateutil

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"eventcal/internal/model"
)

const (
	// DisplayLayout is the human month-day-year form, e.g. "Jun 1, 2024".
	DisplayLayout = "Jan 2, 2006"
	// DayLayout is the ISO calendar day used for form values and drop targets.
	DayLayout = "2006-01-02"
)

// Format renders t with layout, or DisplayLayout when layout is empty.
func Format(t time.Time, layout string) string {
	if layout == "" {
		layout = DisplayLayout
	}
	return t.Format(layout)
}

// Parse is the inverse of Format. An empty layout means DayLayout.
// Text that does not match the layout is an error.
func Parse(text, layout string) (time.Time, error) {
	if layout == "" {
		layout = DayLayout
	}
	t, err := time.ParseInLocation(layout, text, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", text, err)
	}
	return t, nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DayOfWeek returns 0 for Sunday through 6 for Saturday.
func DayOfWeek(t time.Time) int {
	return int(t.Weekday())
}

// DaysInMonth returns every day of t's month at midnight, ascending.
func DaysInMonth(t time.Time) []time.Time {
	first := StartOfMonth(t)
	n := daysIn(first.Year(), first.Month(), first.Location())
	days := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, first.AddDate(0, 0, i))
	}
	return days
}

// AddMonths moves t by n calendar months. When the target month is
// shorter than t's day-of-month the result is clamped to its last day,
// so Jan 31 + 1 month is Feb 28/29 rather than early March.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// RecurringDates returns occurrences dates starting at start, each one
// cadence step after the previous. Fewer than one occurrence still yields
// the start date. An unknown cadence repeats the start date.
func RecurringDates(start time.Time, cadence model.Recurrence, occurrences int) []time.Time {
	if occurrences < 1 {
		occurrences = 1
	}

	switch {
	case cadence == model.RecurrenceDaily,
		cadence == model.RecurrenceWeekly,
		cadence == model.RecurrenceMonthly && start.Day() <= 28:
		if dates, err := ruleDates(start, cadence, occurrences); err == nil {
			return dates
		}
	case cadence == model.RecurrenceMonthly:
		// RFC 5545 skips months without the start day; chain clamped
		// month steps instead.
		dates := make([]time.Time, 0, occurrences)
		cur := start
		for i := 0; i < occurrences; i++ {
			dates = append(dates, cur)
			cur = AddMonths(cur, 1)
		}
		return dates
	}

	dates := make([]time.Time, occurrences)
	for i := range dates {
		dates[i] = start
	}
	return dates
}

func ruleDates(start time.Time, cadence model.Recurrence, occurrences int) ([]time.Time, error) {
	freq := rrule.DAILY
	switch cadence {
	case model.RecurrenceWeekly:
		freq = rrule.WEEKLY
	case model.RecurrenceMonthly:
		freq = rrule.MONTHLY
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    freq,
		Count:   occurrences,
		Dtstart: start,
	})
	if err != nil {
		return nil, err
	}
	dates := r.All()
	if len(dates) != occurrences {
		return nil, fmt.Errorf("rrule produced %d dates, want %d", len(dates), occurrences)
	}
	// rrule truncates DTSTART to whole seconds; keep the caller's value.
	dates[0] = start
	return dates, nil
}

// LeadingBlanks is the number of empty grid cells before first in a
// month grid whose weeks begin on weekStart ("sunday" or "monday").
func LeadingBlanks(first time.Time, weekStart string) int {
	wd := DayOfWeek(first)
	if weekStart == "monday" {
		return (wd + 6) % 7
	}
	return wd
}

// TrailingBlanks is the number of empty grid cells after last.
func TrailingBlanks(last time.Time, weekStart string) int {
	return 6 - LeadingBlanks(last, weekStart)
}
