package recurrence

import (
	"eventcal/internal/dateutil"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// IDFunc generates unique identifiers for instances and groups.
type IDFunc func() string

// Expander turns a recurring template event into its concrete instances.
type Expander struct {
	newID IDFunc
}

// New returns an Expander using newID for fresh ids. A nil newID falls
// back to model.NewID.
func New(newID IDFunc) *Expander {
	if newID == nil {
		newID = model.NewID
	}
	return &Expander{newID: newID}
}

// NewID exposes the expander's id source so the store assigns ids from
// the same generator.
func (x *Expander) NewID() string {
	return x.newID()
}

// Expand returns the instances for template.
//
//   - A non-recurring template is returned as-is, without a group.
//   - Otherwise every instance gets the same fresh group id, a date from
//     dateutil.RecurringDates and its position as RecurrenceIndex.
//     Instance 0 keeps the template id; the others get fresh ids.
func (x *Expander) Expand(template model.Event) []model.Event {
	if !template.Recurrence.Recurring() {
		return []model.Event{template}
	}

	group := x.newID()
	dates := dateutil.RecurringDates(template.Date, template.Recurrence, template.RecurrenceOptions.Occurrences)

	out := make([]model.Event, 0, len(dates))
	for i, date := range dates {
		ev := template.Clone()
		if i > 0 || ev.ID == "" {
			ev.ID = x.newID()
		}
		ev.Date = date
		ev.RecurrenceGroup = group
		ev.IsRecurring = true
		ev.RecurrenceIndex = i
		out = append(out, ev)
	}

	appLog.Debug("recurrence expanded",
		"group", group,
		"cadence", template.Recurrence,
		"instances", len(out),
	)
	return out
}
