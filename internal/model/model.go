package model

import (
	"time"

	"github.com/google/uuid"
)

// Category tags an event for display.
type Category string

const (
	CategoryDefault   Category = "default"
	CategoryWork      Category = "work"
	CategoryPersonal  Category = "personal"
	CategoryImportant Category = "important"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryDefault, CategoryWork, CategoryPersonal, CategoryImportant:
		return true
	}
	return false
}

// Recurrence is the cadence of a recurring event.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// Recurring reports whether r expands into more than a single event.
// An empty value counts as none.
func (r Recurrence) Recurring() bool {
	return r == RecurrenceDaily || r == RecurrenceWeekly || r == RecurrenceMonthly
}

type RecurrenceOptions struct {
	Occurrences int `json:"occurrences"`
}

// Event is a single dated calendar entry. Instances generated from one
// recurring template share RecurrenceGroup.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	StartTime   string    `json:"startTime"` // HH:MM, 24h, zero padded
	EndTime     string    `json:"endTime"`
	Description string    `json:"description,omitempty"`
	Category    Category  `json:"category"`

	Recurrence        Recurrence        `json:"recurrence"`
	RecurrenceOptions RecurrenceOptions `json:"recurrenceOptions"`
	RecurrenceGroup   string            `json:"recurrenceGroup,omitempty"`
	IsRecurring       bool              `json:"isRecurring,omitempty"`
	RecurrenceIndex   int               `json:"recurrenceIndex,omitempty"`
}

// InGroup reports whether e belongs to a recurrence group.
func (e Event) InGroup() bool {
	return e.RecurrenceGroup != ""
}

// Day returns the event date truncated to local midnight.
func (e Event) Day() time.Time {
	y, m, d := e.Date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.Date.Location())
}

// Clone returns a copy of e. Event has no reference fields today, but
// callers use Clone to make ownership explicit.
func (e Event) Clone() Event {
	return e
}

// Normalize replaces unknown or missing enum values with their defaults.
func (e *Event) Normalize() {
	if !e.Category.Valid() {
		e.Category = CategoryDefault
	}
	if !e.Recurrence.Valid() {
		e.Recurrence = RecurrenceNone
	}
}

// DetachGroup clears all recurrence-group membership fields.
func (e *Event) DetachGroup() {
	e.RecurrenceGroup = ""
	e.IsRecurring = false
	e.RecurrenceIndex = 0
}

// UpdateScope selects how an edit to a grouped event is applied.
type UpdateScope string

const (
	ScopeThis UpdateScope = "this"
	ScopeAll  UpdateScope = "all"
)

type UpdateOptions struct {
	Scope UpdateScope `json:"scope"`
}

type DeleteOptions struct {
	DeleteAll bool `json:"deleteAll"`
}

// NewID returns a fresh random identifier for events and groups.
func NewID() string {
	return uuid.NewString()
}
