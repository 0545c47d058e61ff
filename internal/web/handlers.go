package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"eventcal/internal/calendar"
	"eventcal/internal/conflict"
	"eventcal/internal/dateutil"
	"eventcal/internal/ics"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/store"
)

const monthLabelLayout = "January 2006"

// maxImportBytes caps an ICS body posted to /api/import.
const maxImportBytes = 10 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

type searchRequest struct {
	Term string `json:"term"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.SetSearchTerm(req.Term)
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

type dateRequest struct {
	Date string `json:"date"`
}

func (s *Server) handleSelected(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}
	date, err := dateutil.Parse(req.Date, dateutil.DayLayout)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "date must be YYYY-MM-DD", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.SetSelectedDate(date)
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

type monthResponse struct {
	CurrentDate time.Time          `json:"currentDate"`
	Label       string             `json:"label"`
	Grid        calendar.MonthGrid `json:"grid"`
	// Events maps YYYY-MM-DD to the filtered, time-sorted events of that day.
	Events map[string][]model.Event `json:"events"`
}

// month must be called with s.mu held.
func (s *Server) month() monthResponse {
	grid := s.ctrl.MonthGrid()
	byDay := store.GroupByDate(s.ctrl.FilteredEvents())
	events := make(map[string][]model.Event, len(grid.Days))
	for _, day := range grid.Days {
		key := day.Format(dateutil.DayLayout)
		if evs, ok := byDay[key]; ok {
			events[key] = evs
		}
	}
	return monthResponse{
		CurrentDate: s.ctrl.CurrentDate(),
		Label:       dateutil.Format(s.ctrl.CurrentDate(), monthLabelLayout),
		Grid:        grid,
		Events:      events,
	}
}

func (s *Server) handleMonth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.month())
}

func (s *Server) handleMonthNext(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.GoToNextMonth()
	writeJSON(w, http.StatusOK, s.month())
}

func (s *Server) handleMonthPrev(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.GoToPreviousMonth()
	writeJSON(w, http.StatusOK, s.month())
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filtered := r.URL.Query().Get("filtered") == "1"

	s.mu.Lock()
	var events []model.Event
	if filtered {
		events = s.ctrl.FilteredEvents()
	} else {
		events = s.ctrl.Events()
	}
	s.mu.Unlock()

	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := decodeJSON(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}
	if errs := calendar.ValidateEvent(ev); errs != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "event is invalid", errs)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusCreated, s.ctrl.AddEvent(ev))
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := decodeJSON(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}
	ev.ID = chi.URLParam(r, "id")
	if errs := calendar.ValidateEvent(ev); errs != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "event is invalid", errs)
		return
	}

	scope := model.ScopeThis
	if r.URL.Query().Get("scope") == string(model.ScopeAll) {
		scope = model.ScopeAll
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ctrl.UpdateEvent(ev, model.UpdateOptions{Scope: scope}) {
		writeError(w, http.StatusNotFound, codeNotFound, "event not found", nil)
		return
	}
	updated, _ := s.ctrl.Event(ev.ID)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	all := r.URL.Query().Get("all") == "1"

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ctrl.DeleteEvent(id, model.DeleteOptions{DeleteAll: all}) {
		writeError(w, http.StatusNotFound, codeNotFound, "event not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDayEvents(w http.ResponseWriter, r *http.Request) {
	day, err := dateutil.Parse(chi.URLParam(r, "day"), dateutil.DayLayout)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "day must be YYYY-MM-DD", nil)
		return
	}

	s.mu.Lock()
	events := store.SortByTime(s.ctrl.EventsForDay(day))
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, events)
}

type conflictsResponse struct {
	Message   string        `json:"message,omitempty"`
	Conflicts []model.Event `json:"conflictingEvents"`
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := decodeJSON(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}

	s.mu.Lock()
	found := s.ctrl.CheckEventConflicts(ev)
	s.mu.Unlock()

	resp := conflictsResponse{Conflicts: []model.Event{}}
	if warn := conflict.NewWarning(found); warn != nil {
		resp = conflictsResponse{Message: warn.Message, Conflicts: warn.Events}
	}
	writeJSON(w, http.StatusOK, resp)
}

type formOpenRequest struct {
	Date    string `json:"date"`
	EventID string `json:"eventId,omitempty"`
}

func (s *Server) handleFormOpen(w http.ResponseWriter, r *http.Request) {
	var req formOpenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var editing *model.Event
	if req.EventID != "" {
		ev, ok := s.ctrl.Event(req.EventID)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "event not found", nil)
			return
		}
		editing = &ev
	}

	date := s.ctrl.SelectedDate()
	switch {
	case req.Date != "":
		parsed, err := dateutil.Parse(req.Date, dateutil.DayLayout)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "date must be YYYY-MM-DD", nil)
			return
		}
		date = parsed
	case editing != nil:
		date = editing.Date
	}

	s.ctrl.OpenEventForm(date, editing)
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleFormClose(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.CloseEventForm()
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

type submitRequest struct {
	calendar.Draft
	Override bool              `json:"override"`
	Scope    model.UpdateScope `json:"scope"`
}

func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.ctrl.Submit(req.Draft, calendar.SubmitOptions{Override: req.Override, Scope: req.Scope})
	switch {
	case res.Errors != nil:
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "event is invalid", res.Errors)
	case res.Warning != nil:
		writeError(w, http.StatusConflict, codeConflict, res.Warning.Message, res.Warning)
	default:
		writeJSON(w, http.StatusCreated, res.Saved)
	}
}

type removeRequest struct {
	ID        string `json:"id"`
	DeleteAll bool   `json:"deleteAll"`
}

func (s *Server) handleFormRemove(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ctrl.Remove(req.ID, req.DeleteAll) {
		writeError(w, http.StatusNotFound, codeNotFound, "event not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleDragStart(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.HandleDragStart()
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

type dragEndResponse struct {
	Moved bool           `json:"moved"`
	State calendar.State `json:"state"`
}

func (s *Server) handleDragEnd(w http.ResponseWriter, r *http.Request) {
	var result calendar.DragResult
	if err := decodeJSON(r, &result); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	moved := s.ctrl.HandleDragEnd(result)
	writeJSON(w, http.StatusOK, dragEndResponse{Moved: moved, State: s.ctrl.State()})
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	events := s.ctrl.Events()
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := ics.Export(&buf, events); err != nil {
		appLog.Error("ics export failed", err, "count", len(events))
		writeError(w, http.StatusInternalServerError, codeInternal, "export failed", nil)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="eventcal.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type importURLRequest struct {
	URL string `json:"url"`
}

type importResponse struct {
	Imported int           `json:"imported"`
	Events   []model.Event `json:"events"`
}

// handleImport accepts either a raw ICS body or a JSON {"url": ...} that
// is fetched first. The fetch runs outside the lock.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, status, err := s.importBody(r)
	if err != nil {
		code := codeBadRequest
		if status >= http.StatusInternalServerError {
			code = codeInternal
		}
		writeError(w, status, code, err.Error(), nil)
		return
	}

	parsed, err := ics.Parse(bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid calendar: "+err.Error(), nil)
		return
	}

	s.mu.Lock()
	added := s.ctrl.ImportEvents(parsed)
	s.mu.Unlock()

	if added == nil {
		added = []model.Event{}
	}
	appLog.Info("ics import completed", "parsed", len(parsed), "added", len(added))
	writeJSON(w, http.StatusCreated, importResponse{Imported: len(added), Events: added})
}

func (s *Server) importBody(r *http.Request) ([]byte, int, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxImportBytes))
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("read body: %w", err)
		}
		return body, http.StatusOK, nil
	}

	var req importURLRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err)
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, http.StatusBadRequest, errors.New("url is required")
	}
	body, err := s.fetcher.Fetch(r.Context(), strings.TrimSpace(req.URL))
	if err != nil {
		appLog.Error("ics import fetch failed", err)
		return nil, http.StatusBadGateway, fmt.Errorf("fetch failed: %w", err)
	}
	return body, http.StatusOK, nil
}
