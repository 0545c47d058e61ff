package ics

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"eventcal/internal/dateutil"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

const (
	timeLayout = "15:04"
	endOfDay   = "23:59"
)

// Parse reads every VEVENT in r.
//
//   - Times are converted to local wall-clock dates and HH:MM strings.
//     All-day events span 00:00-23:59; an end past midnight is clamped
//     to 23:59.
//   - A VEVENT with an RRULE of FREQ DAILY, WEEKLY or MONTHLY becomes a
//     recurring template whose occurrences come from COUNT. Without COUNT
//     the occurrences are left at zero for the caller to default.
//   - Instances written by Export keep their recurrence group.
//
// Malformed VEVENTs are logged and skipped; only an unreadable calendar
// is an error.
func Parse(r io.Reader) ([]model.Event, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	events := make([]model.Event, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve)
		if perr != nil {
			appLog.Warn("ics: skipping vevent", "uid", ve.Id(), "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (model.Event, error) {
	var out model.Event
	out.ID = ve.Id()

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = strings.TrimSpace(p.Value)
	}
	if out.Title == "" {
		return out, errors.New("missing SUMMARY")
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	out.Category = parseCategory(ve)

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	start = start.In(time.Local)
	out.Date = dateutil.StartOfDay(start)

	if isAllDay(ve) {
		out.StartTime, out.EndTime = "00:00", endOfDay
	} else {
		end, err := ve.GetEndAt()
		if err != nil {
			end = start.Add(time.Hour)
		}
		end = end.In(time.Local)
		out.StartTime = start.Format(timeLayout)
		out.EndTime = end.Format(timeLayout)
		if !dateutil.SameDay(start, end) || out.EndTime <= out.StartTime {
			out.EndTime = endOfDay
		}
	}

	out.Recurrence = model.RecurrenceNone
	if group := propValue(ve, propGroup); group != "" {
		out.RecurrenceGroup = group
		out.IsRecurring = true
		out.RecurrenceIndex, _ = strconv.Atoi(propValue(ve, propIndex))
		out.Recurrence = model.Recurrence(propValue(ve, propRecurrence))
		out.RecurrenceOptions.Occurrences, _ = strconv.Atoi(propValue(ve, propOccurrences))
	} else if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.Recurrence, out.RecurrenceOptions.Occurrences = mapRRule(p.Value)
	}

	out.Normalize()
	return out, nil
}

// mapRRule reduces an RRULE to one of the supported cadences. Rules that
// do not fit (yearly, hourly, unparseable) import as single events.
func mapRRule(value string) (model.Recurrence, int) {
	opt, err := rrule.StrToROption(value)
	if err != nil {
		appLog.Warn("ics: ignoring RRULE", "rrule", value, "reason", err.Error())
		return model.RecurrenceNone, 0
	}

	var cadence model.Recurrence
	switch opt.Freq {
	case rrule.DAILY:
		cadence = model.RecurrenceDaily
	case rrule.WEEKLY:
		cadence = model.RecurrenceWeekly
	case rrule.MONTHLY:
		cadence = model.RecurrenceMonthly
	default:
		appLog.Warn("ics: unsupported RRULE frequency", "freq", opt.Freq.String())
		return model.RecurrenceNone, 0
	}
	return cadence, opt.Count
}

func parseCategory(ve *ical.VEvent) model.Category {
	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		for _, part := range strings.Split(p.Value, ",") {
			c := model.Category(strings.ToLower(strings.TrimSpace(part)))
			if c.Valid() {
				return c
			}
		}
	}
	return model.CategoryDefault
}

// isAllDay follows the VALUE=DATE parameter, or a DTSTART without a time part.
func isAllDay(ve *ical.VEvent) bool {
	p := ve.GetProperty(ical.ComponentPropertyDtStart)
	if p == nil {
		return false
	}
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}
