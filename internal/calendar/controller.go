// Package calendar holds the Calendar Controller: navigation, form state,
// drag state and search, routing every mutation to the event store.
//
// A Controller is constructed once per session and is not safe for
// concurrent use. Callers that serve several goroutines (the HTTP adapter)
// serialize access themselves.
package calendar

import (
	"time"

	"eventcal/internal/conflict"
	"eventcal/internal/dateutil"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/search"
	"eventcal/internal/store"
)

// Controller is the state machine the presentation layer binds to.
type Controller struct {
	store *store.Store

	now                func() time.Time
	defaultOccurrences int
	weekStart          string

	currentDate   time.Time
	selectedDate  time.Time
	showEventForm bool
	currentEvent  *model.Event
	isEditing     bool
	isDragging    bool
	searchTerm    string
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the time source used for the initial current and
// selected dates.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithDefaultOccurrences sets the instance count used for recurring
// drafts without a positive count.
func WithDefaultOccurrences(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.defaultOccurrences = n
		}
	}
}

// WithWeekStart sets the first grid column, "sunday" or "monday".
func WithWeekStart(weekStart string) Option {
	return func(c *Controller) {
		c.weekStart = weekStart
	}
}

// New builds a Controller over s. Current and selected dates start today.
func New(s *store.Store, opts ...Option) *Controller {
	c := &Controller{
		store:              s,
		now:                time.Now,
		defaultOccurrences: 10,
		weekStart:          "sunday",
	}
	for _, opt := range opts {
		opt(c)
	}
	today := c.now()
	c.currentDate = today
	c.selectedDate = today
	return c
}

func (c *Controller) CurrentDate() time.Time { return c.currentDate }
func (c *Controller) SelectedDate() time.Time { return c.selectedDate }
func (c *Controller) ShowEventForm() bool { return c.showEventForm }
func (c *Controller) IsEditing() bool { return c.isEditing }
func (c *Controller) IsDragging() bool { return c.isDragging }
func (c *Controller) SearchTerm() string { return c.searchTerm }

// CurrentEvent returns the event being edited, if any.
func (c *Controller) CurrentEvent() (model.Event, bool) {
	if c.currentEvent == nil {
		return model.Event{}, false
	}
	return *c.currentEvent, true
}

// Event looks an event up by id.
func (c *Controller) Event(id string) (model.Event, bool) {
	return c.store.Get(id)
}

// Events is the unfiltered collection.
func (c *Controller) Events() []model.Event {
	return c.store.Events()
}

// FilteredEvents is recomputed from the store and the search term on
// every call.
func (c *Controller) FilteredEvents() []model.Event {
	return search.Filter(c.store.Events(), c.searchTerm)
}

func (c *Controller) SetSearchTerm(term string) {
	c.searchTerm = term
}

func (c *Controller) SetSelectedDate(date time.Time) {
	c.selectedDate = date
}

func (c *Controller) GoToNextMonth() {
	c.currentDate = dateutil.AddMonths(c.currentDate, 1)
}

func (c *Controller) GoToPreviousMonth() {
	c.currentDate = dateutil.AddMonths(c.currentDate, -1)
}

// DaysInMonth lists the days of the month being viewed.
func (c *Controller) DaysInMonth() []time.Time {
	return dateutil.DaysInMonth(c.currentDate)
}

// MonthGrid is the month being viewed laid out in week rows.
type MonthGrid struct {
	Days           []time.Time `json:"days"`
	LeadingBlanks  int         `json:"leadingBlanks"`
	TrailingBlanks int         `json:"trailingBlanks"`
	WeekStart      string      `json:"weekStart"`
}

func (c *Controller) MonthGrid() MonthGrid {
	days := c.DaysInMonth()
	return MonthGrid{
		Days:           days,
		LeadingBlanks:  dateutil.LeadingBlanks(days[0], c.weekStart),
		TrailingBlanks: dateutil.TrailingBlanks(days[len(days)-1], c.weekStart),
		WeekStart:      c.weekStart,
	}
}

func (c *Controller) AddEvent(ev model.Event) []model.Event {
	return c.store.Add(ev)
}

func (c *Controller) UpdateEvent(ev model.Event, opts model.UpdateOptions) bool {
	return c.store.Update(ev, opts)
}

func (c *Controller) DeleteEvent(id string, opts model.DeleteOptions) bool {
	return c.store.Delete(id, opts)
}

// CheckEventConflicts compares ev against every event, ignoring the
// search filter.
func (c *Controller) CheckEventConflicts(ev model.Event) []model.Event {
	return conflict.Find(ev, c.store.Events())
}

// EventsForDay returns the filtered events on day, unsorted.
func (c *Controller) EventsForDay(day time.Time) []model.Event {
	return store.EventsOnDay(c.FilteredEvents(), day)
}

// OpenEventForm shows the form for date. A non-nil ev enters edit mode.
func (c *Controller) OpenEventForm(date time.Time, ev *model.Event) {
	c.selectedDate = date
	if ev != nil {
		cp := *ev
		c.currentEvent = &cp
	} else {
		c.currentEvent = nil
	}
	c.isEditing = ev != nil
	c.showEventForm = true
}

func (c *Controller) CloseEventForm() {
	c.showEventForm = false
	c.currentEvent = nil
	c.isEditing = false
}

// Remove deletes id (or its group) and closes the form.
func (c *Controller) Remove(id string, deleteAll bool) bool {
	ok := c.store.Delete(id, model.DeleteOptions{DeleteAll: deleteAll})
	c.CloseEventForm()
	return ok
}

func (c *Controller) HandleDragStart() {
	c.isDragging = true
}

// Destination is the drop target of a drag; DroppableID is a YYYY-MM-DD day.
type Destination struct {
	DroppableID string `json:"droppableId"`
}

// DragResult is what the drag-and-drop collaborator reports on drop.
// A nil Destination means the drag was cancelled.
type DragResult struct {
	Destination *Destination `json:"destination"`
	DraggableID string       `json:"draggableId"`
}

// HandleDragEnd moves the dragged event to the drop day as a
// single-instance update. Cancelled drags, unparseable targets and
// unknown ids change nothing but the drag flag.
func (c *Controller) HandleDragEnd(result DragResult) bool {
	c.isDragging = false
	if result.Destination == nil {
		return false
	}

	target, err := dateutil.Parse(result.Destination.DroppableID, dateutil.DayLayout)
	if err != nil {
		appLog.Warn("drag: ignoring drop target", "droppable_id", result.Destination.DroppableID)
		return false
	}

	ev, ok := c.store.Get(result.DraggableID)
	if !ok {
		return false
	}
	ev.Date = target
	return c.store.Update(ev, model.UpdateOptions{Scope: model.ScopeThis})
}

// State is a read-only snapshot of the controller for the presentation layer.
type State struct {
	CurrentDate   time.Time     `json:"currentDate"`
	SelectedDate  time.Time     `json:"selectedDate"`
	ShowEventForm bool          `json:"showEventForm"`
	CurrentEvent  *model.Event  `json:"currentEvent"`
	IsEditing     bool          `json:"isEditing"`
	IsDragging    bool          `json:"isDragging"`
	SearchTerm    string        `json:"searchTerm"`
	EventCount    int           `json:"eventCount"`
	Filtered      []model.Event `json:"filteredEvents"`
}

func (c *Controller) State() State {
	st := State{
		CurrentDate:   c.currentDate,
		SelectedDate:  c.selectedDate,
		ShowEventForm: c.showEventForm,
		IsEditing:     c.isEditing,
		IsDragging:    c.isDragging,
		SearchTerm:    c.searchTerm,
		EventCount:    c.store.Len(),
		Filtered:      c.FilteredEvents(),
	}
	if ev, ok := c.CurrentEvent(); ok {
		st.CurrentEvent = &ev
	}
	return st
}

// ImportEvents adds externally sourced events: recurring templates are
// expanded, everything else is inserted as-is.
func (c *Controller) ImportEvents(events []model.Event) []model.Event {
	var added []model.Event
	var plain []model.Event
	for _, ev := range events {
		if ev.Recurrence.Recurring() && !ev.InGroup() {
			if ev.RecurrenceOptions.Occurrences < 1 {
				ev.RecurrenceOptions.Occurrences = c.defaultOccurrences
			}
			added = append(added, c.store.Add(ev)...)
			continue
		}
		plain = append(plain, ev)
	}
	added = append(added, c.store.Insert(plain...)...)
	return added
}

// Snapshot returns the persisted form of the collection.
func (c *Controller) Snapshot() ([]byte, error) {
	return c.store.Snapshot()
}
