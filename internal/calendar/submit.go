package calendar

import (
	"sort"
	"strings"
	"time"

	"eventcal/internal/conflict"
	"eventcal/internal/dateutil"
	"eventcal/internal/model"
)

// Draft is the event form's content. Date is a YYYY-MM-DD string as
// produced by a date input.
type Draft struct {
	Title       string           `json:"title"`
	Date        string           `json:"date"`
	StartTime   string           `json:"startTime"`
	EndTime     string           `json:"endTime"`
	Description string           `json:"description"`
	Category    model.Category   `json:"category"`
	Recurrence  model.Recurrence `json:"recurrence"`
	Occurrences int              `json:"occurrences"`
}

// DraftFromEvent pre-fills a form from an existing event.
func DraftFromEvent(ev model.Event) Draft {
	return Draft{
		Title:       ev.Title,
		Date:        ev.Date.Format(dateutil.DayLayout),
		StartTime:   ev.StartTime,
		EndTime:     ev.EndTime,
		Description: ev.Description,
		Category:    ev.Category,
		Recurrence:  ev.Recurrence,
		Occurrences: ev.RecurrenceOptions.Occurrences,
	}
}

// ValidationErrors maps form fields ("title", "date", "time") to messages.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "invalid event: " + strings.Join(parts, "; ")
}

const (
	msgTitleRequired = "Title is required"
	msgDateRequired  = "Date is required"
	msgDateInvalid   = "Date must be YYYY-MM-DD"
	msgTimeOrder     = "End time must be after start time"
)

// Validate checks d and returns the parsed date. A non-nil
// ValidationErrors means d must not be saved.
func (d Draft) Validate() (time.Time, ValidationErrors) {
	errs := ValidationErrors{}
	if strings.TrimSpace(d.Title) == "" {
		errs["title"] = msgTitleRequired
	}

	var date time.Time
	if strings.TrimSpace(d.Date) == "" {
		errs["date"] = msgDateRequired
	} else if parsed, err := dateutil.Parse(strings.TrimSpace(d.Date), dateutil.DayLayout); err != nil {
		errs["date"] = msgDateInvalid
	} else {
		date = parsed
	}

	if d.StartTime >= d.EndTime {
		errs["time"] = msgTimeOrder
	}

	if len(errs) > 0 {
		return time.Time{}, errs
	}
	return date, nil
}

// ValidateEvent applies the form rules to an already-built event, for
// callers that bypass the form.
func ValidateEvent(ev model.Event) ValidationErrors {
	errs := ValidationErrors{}
	if strings.TrimSpace(ev.Title) == "" {
		errs["title"] = msgTitleRequired
	}
	if ev.Date.IsZero() {
		errs["date"] = msgDateRequired
	}
	if ev.StartTime >= ev.EndTime {
		errs["time"] = msgTimeOrder
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SubmitOptions carries the user's choices alongside a draft.
type SubmitOptions struct {
	// Override saves despite conflicts.
	Override bool `json:"override"`
	// Scope applies to edits of recurring events.
	Scope model.UpdateScope `json:"scope"`
}

// SubmitResult reports what Submit did. Exactly one of Errors, Warning
// or Saved is set.
type SubmitResult struct {
	Errors  ValidationErrors  `json:"errors,omitempty"`
	Warning *conflict.Warning `json:"warning,omitempty"`
	Saved   []model.Event     `json:"saved,omitempty"`
}

// OK reports whether the draft was stored.
func (r SubmitResult) OK() bool {
	return r.Errors == nil && r.Warning == nil
}

// Submit validates the draft, checks it for conflicts against all events,
// and then adds it (create mode) or updates the edited event (edit mode)
// and closes the form. Validation errors and unconfirmed conflicts leave
// the store and the form untouched.
func (c *Controller) Submit(d Draft, opts SubmitOptions) SubmitResult {
	date, errs := d.Validate()
	if errs != nil {
		return SubmitResult{Errors: errs}
	}

	ev := c.eventFromDraft(d, date)

	if !opts.Override {
		if w := conflict.NewWarning(c.CheckEventConflicts(ev)); w != nil {
			return SubmitResult{Warning: w}
		}
	}

	var saved []model.Event
	if c.isEditing && c.currentEvent != nil {
		scope := opts.Scope
		if scope == "" {
			scope = model.ScopeThis
		}
		if c.store.Update(ev, model.UpdateOptions{Scope: scope}) {
			if got, ok := c.store.Get(ev.ID); ok {
				saved = []model.Event{got}
			}
		}
	} else {
		saved = c.store.Add(ev)
	}

	c.CloseEventForm()
	return SubmitResult{Saved: saved}
}

func (c *Controller) eventFromDraft(d Draft, date time.Time) model.Event {
	ev := model.Event{
		Title:       strings.TrimSpace(d.Title),
		Date:        date,
		StartTime:   d.StartTime,
		EndTime:     d.EndTime,
		Description: d.Description,
		Category:    d.Category,
		Recurrence:  d.Recurrence,
		RecurrenceOptions: model.RecurrenceOptions{
			Occurrences: d.Occurrences,
		},
	}
	ev.Normalize()
	if ev.Recurrence.Recurring() && ev.RecurrenceOptions.Occurrences < 1 {
		ev.RecurrenceOptions.Occurrences = c.defaultOccurrences
	}

	if c.isEditing && c.currentEvent != nil {
		// The edit keeps identity and series membership of the original.
		ev.ID = c.currentEvent.ID
		ev.RecurrenceGroup = c.currentEvent.RecurrenceGroup
		ev.IsRecurring = c.currentEvent.IsRecurring
		ev.RecurrenceIndex = c.currentEvent.RecurrenceIndex
	}
	return ev
}
