// Package store keeps the in-memory event collection and flushes it to a
// persisted Slot after every mutation. The store is not safe for
// concurrent use; callers serialize access.
package store

import (
	"errors"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/recurrence"
)

// Store is the ordered event collection, treated as a set keyed by id.
type Store struct {
	slot     Slot
	expander *recurrence.Expander
	events   []model.Event
}

// Open builds a Store backed by slot and loads whatever it holds.
// Load failures leave the store empty; they are logged, never returned.
func Open(slot Slot, expander *recurrence.Expander) *Store {
	if expander == nil {
		expander = recurrence.New(nil)
	}
	s := &Store{slot: slot, expander: expander}
	s.load()
	return s
}

func (s *Store) load() {
	s.events = nil

	data, err := s.slot.Read()
	if errors.Is(err, ErrSlotEmpty) {
		appLog.Info("store: nothing persisted yet", "slot", s.slot.Name())
		return
	}
	if err != nil {
		appLog.Error("store: read failed, starting empty", err, "slot", s.slot.Name())
		return
	}

	events, err := decodeEvents(data)
	if err != nil {
		appLog.Error("store: persisted state corrupt, starting empty", err, "slot", s.slot.Name())
		return
	}
	s.events = events
	appLog.Info("store: loaded", "slot", s.slot.Name(), "count", len(events))
}

// persist writes the full collection. Failures are logged and swallowed;
// the in-memory collection stays authoritative.
func (s *Store) persist() {
	data, err := encodeEvents(s.events)
	if err != nil {
		appLog.Error("store: encode failed", err, "count", len(s.events))
		return
	}
	if err := s.slot.Write(data); err != nil {
		appLog.Error("store: write failed", err, "slot", s.slot.Name(), "count", len(s.events))
	}
}

// Events returns a copy of the whole collection.
func (s *Store) Events() []model.Event {
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Store) Len() int {
	return len(s.events)
}

// Get looks an event up by id.
func (s *Store) Get(id string) (model.Event, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.events[i], true
	}
	return model.Event{}, false
}

func (s *Store) indexOf(id string) int {
	for i := range s.events {
		if s.events[i].ID == id {
			return i
		}
	}
	return -1
}

// Add inserts event, expanding it first when it recurs. A non-recurring
// event always gets a fresh id. The inserted events are returned.
func (s *Store) Add(event model.Event) []model.Event {
	event.Normalize()

	var added []model.Event
	if event.Recurrence.Recurring() {
		if event.ID == "" || s.indexOf(event.ID) >= 0 {
			event.ID = s.expander.NewID()
		}
		added = s.expander.Expand(event)
	} else {
		event.ID = s.expander.NewID()
		added = []model.Event{event}
	}

	s.events = append(s.events, added...)
	s.persist()
	return added
}

// Update applies an edit. When the stored event belongs to a group and the
// scope is "all", that group is replaced by a fresh expansion of event.
// Otherwise the event with the same id is replaced in place, whatever its
// recurrence says. Unknown ids are a no-op and report false.
func (s *Store) Update(event model.Event, opts model.UpdateOptions) bool {
	event.Normalize()

	i := s.indexOf(event.ID)
	if i < 0 {
		return false
	}

	if stored := s.events[i]; stored.InGroup() && opts.Scope == model.ScopeAll {
		s.replaceGroup(stored.RecurrenceGroup, event)
	} else {
		s.events[i] = event
	}

	s.persist()
	return true
}

func (s *Store) replaceGroup(group string, template model.Event) {
	kept := s.events[:0]
	for _, ev := range s.events {
		if ev.RecurrenceGroup != group {
			kept = append(kept, ev)
		}
	}
	s.events = kept

	if !template.Recurrence.Recurring() {
		// The series collapses into a single standalone event.
		template.DetachGroup()
	}
	s.events = append(s.events, s.expander.Expand(template)...)
}

// Delete removes id, or its whole recurrence group when opts.DeleteAll is
// set and the event is grouped. Unknown ids are a no-op and report false.
func (s *Store) Delete(id string, opts model.DeleteOptions) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}

	target := s.events[i]
	if opts.DeleteAll && target.InGroup() {
		kept := s.events[:0]
		for _, ev := range s.events {
			if ev.RecurrenceGroup != target.RecurrenceGroup {
				kept = append(kept, ev)
			}
		}
		s.events = kept
	} else {
		s.events = append(s.events[:i], s.events[i+1:]...)
	}

	s.persist()
	return true
}

// Insert adds already-materialized events as they are, e.g. from an
// import. Empty or clashing ids are replaced with fresh ones. A group id
// already present in the store is remapped to one fresh group shared by
// all inserted members, so inserted copies never join an existing series.
func (s *Store) Insert(events ...model.Event) []model.Event {
	if len(events) == 0 {
		return nil
	}

	existing := make(map[string]bool)
	for _, ev := range s.events {
		if ev.InGroup() {
			existing[ev.RecurrenceGroup] = true
		}
	}
	regrouped := make(map[string]string)

	added := make([]model.Event, 0, len(events))
	for _, ev := range events {
		ev.Normalize()
		if ev.ID == "" || s.indexOf(ev.ID) >= 0 {
			ev.ID = s.expander.NewID()
		}
		if ev.InGroup() && existing[ev.RecurrenceGroup] {
			fresh, ok := regrouped[ev.RecurrenceGroup]
			if !ok {
				fresh = s.expander.NewID()
				regrouped[ev.RecurrenceGroup] = fresh
			}
			ev.RecurrenceGroup = fresh
		}
		s.events = append(s.events, ev)
		added = append(added, ev)
	}
	s.persist()
	return added
}

// Snapshot returns the collection serialized exactly as it is persisted.
func (s *Store) Snapshot() ([]byte, error) {
	return encodeEvents(s.events)
}
