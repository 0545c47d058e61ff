package store

import (
	"encoding/json"
	"fmt"
	"time"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// record mirrors model.Event on the wire but keeps the date as text so a
// single bad value does not fail the whole collection. The outer Date
// shadows the embedded one during decoding.
type record struct {
	model.Event
	Date string `json:"date"`
}

// dateLayouts are tried in order when reading persisted dates.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseStoredDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.In(time.Local), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// decodeEvents parses a persisted collection. Records without an id or a
// usable date are dropped with a warning; enum fields are normalized.
func decodeEvents(data []byte) ([]model.Event, error) {
	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decoding events: %w", err)
	}

	events := make([]model.Event, 0, len(recs))
	seen := make(map[string]bool, len(recs))
	for i, rec := range recs {
		ev := rec.Event
		if ev.ID == "" {
			appLog.Warn("store: dropping record without id", "index", i)
			continue
		}
		if seen[ev.ID] {
			appLog.Warn("store: dropping duplicate id", "index", i, "id", ev.ID)
			continue
		}
		date, err := parseStoredDate(rec.Date)
		if err != nil {
			appLog.Warn("store: dropping record with bad date", "index", i, "id", ev.ID, "date", rec.Date)
			continue
		}
		ev.Date = date
		ev.Normalize()
		if ev.RecurrenceGroup != "" {
			ev.IsRecurring = true
		}
		seen[ev.ID] = true
		events = append(events, ev)
	}
	return events, nil
}

func encodeEvents(events []model.Event) ([]byte, error) {
	if events == nil {
		events = []model.Event{}
	}
	return json.Marshal(events)
}
