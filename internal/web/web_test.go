package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eventcal/internal/auth"
	"eventcal/internal/calendar"
	"eventcal/internal/config"
	"eventcal/internal/model"
	"eventcal/internal/recurrence"
	"eventcal/internal/store"
)

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	n := 0
	exp := recurrence.New(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})
	st := store.Open(store.NewMemorySlot(nil), exp)
	ctrl := calendar.New(st, calendar.WithClock(func() time.Time {
		return time.Date(2024, 6, 15, 9, 0, 0, 0, time.Local)
	}))
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return NewServer(cfg, ctrl, nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[") {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T from %q: %v", v, rec.Body.String(), err)
	}
	return v
}

func eventJSON(title, day, start, end string) string {
	d, _ := time.ParseInLocation("2006-01-02", day, time.Local)
	return fmt.Sprintf(`{"title":%q,"date":%q,"startTime":%q,"endTime":%q,"category":"work","recurrence":"none","recurrenceOptions":{"occurrences":0}}`,
		title, d.Format(time.RFC3339), start, end)
}

func submitJSON(title, day, start, end string, override bool) string {
	return fmt.Sprintf(`{"title":%q,"date":%q,"startTime":%q,"endTime":%q,"category":"work","recurrence":"none","override":%t}`,
		title, day, start, end, override)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestCreateListAndDeleteEvents(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/events", eventJSON("Dentist", "2024-06-15", "09:00", "10:00"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	created := decode[[]model.Event](t, rec)
	if len(created) != 1 || created[0].ID == "" {
		t.Fatalf("created = %+v", created)
	}

	rec = do(t, h, http.MethodGet, "/api/events", "")
	if got := decode[[]model.Event](t, rec); len(got) != 1 {
		t.Fatalf("list = %+v", got)
	}

	rec = do(t, h, http.MethodDelete, "/api/events/"+created[0].ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
	rec = do(t, h, http.MethodDelete, "/api/events/"+created[0].ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete = %d", rec.Code)
	}
	if body := decode[errorResponse](t, rec); body.Error != codeNotFound {
		t.Errorf("error code = %q", body.Error)
	}

	rec = do(t, h, http.MethodGet, "/api/events", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty list = %s", rec.Body.String())
	}
}

func TestCreateEventValidation(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rec := do(t, h, http.MethodPost, "/api/events", eventJSON("Bad", "2024-06-15", "10:00", "10:00"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error != codeValidation || body.Details["time"] != "End time must be after start time" {
		t.Errorf("body = %+v", body)
	}

	rec = do(t, h, http.MethodPost, "/api/events", `{"title":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body = %d", rec.Code)
	}
}

func TestUpdateEvent(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	created := decode[[]model.Event](t, do(t, h, http.MethodPost, "/api/events", eventJSON("Call", "2024-06-15", "09:00", "10:00")))

	rec := do(t, h, http.MethodPut, "/api/events/"+created[0].ID, eventJSON("Call moved", "2024-06-16", "11:00", "12:00"))
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d %s", rec.Code, rec.Body.String())
	}
	if got := decode[model.Event](t, rec); got.Title != "Call moved" || got.Date.Day() != 16 {
		t.Errorf("updated = %+v", got)
	}

	rec = do(t, h, http.MethodPut, "/api/events/missing", eventJSON("x", "2024-06-16", "11:00", "12:00"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id = %d", rec.Code)
	}
}

func TestDayEventsSortedAndFiltered(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	do(t, h, http.MethodPost, "/api/events", eventJSON("Late review", "2024-06-15", "15:00", "16:00"))
	do(t, h, http.MethodPost, "/api/events", eventJSON("Early standup", "2024-06-15", "08:00", "08:15"))
	do(t, h, http.MethodPost, "/api/events", eventJSON("Other day", "2024-06-16", "08:00", "08:15"))

	got := decode[[]model.Event](t, do(t, h, http.MethodGet, "/api/days/2024-06-15/events", ""))
	if len(got) != 2 || got[0].Title != "Early standup" {
		t.Fatalf("day events = %+v", got)
	}

	do(t, h, http.MethodPut, "/api/search", `{"term":"review"}`)
	got = decode[[]model.Event](t, do(t, h, http.MethodGet, "/api/days/2024-06-15/events", ""))
	if len(got) != 1 || got[0].Title != "Late review" {
		t.Errorf("filtered day events = %+v", got)
	}

	if rec := do(t, h, http.MethodGet, "/api/days/15-06-2024/events", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad day = %d", rec.Code)
	}
}

func TestFormSubmitConflict(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/form/submit", submitJSON("First", "2024-06-15", "09:00", "10:00", false))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first submit = %d %s", rec.Code, rec.Body.String())
	}

	do(t, h, http.MethodPost, "/api/form/open", `{"date":"2024-06-15"}`)
	rec = do(t, h, http.MethodPost, "/api/form/submit", submitJSON("Second", "2024-06-15", "09:30", "10:30", false))
	if rec.Code != http.StatusConflict {
		t.Fatalf("conflicting submit = %d", rec.Code)
	}
	body := decode[errorResponse](t, rec)
	if body.Error != codeConflict || body.Message != "This event conflicts with 1 existing event(s)." {
		t.Errorf("conflict body = %+v", body)
	}
	st := decode[calendar.State](t, do(t, h, http.MethodGet, "/api/state", ""))
	if !st.ShowEventForm || st.EventCount != 1 {
		t.Errorf("state after conflict = %+v", st)
	}

	rec = do(t, h, http.MethodPost, "/api/form/submit", submitJSON("Second", "2024-06-15", "09:30", "10:30", true))
	if rec.Code != http.StatusCreated {
		t.Fatalf("override submit = %d", rec.Code)
	}
	st = decode[calendar.State](t, do(t, h, http.MethodGet, "/api/state", ""))
	if st.ShowEventForm || st.EventCount != 2 {
		t.Errorf("state after override = %+v", st)
	}
}

func TestFormOpenEditAndRemove(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	created := decode[[]model.Event](t, do(t, h, http.MethodPost, "/api/events", eventJSON("Edit me", "2024-06-20", "09:00", "10:00")))
	id := created[0].ID

	st := decode[calendar.State](t, do(t, h, http.MethodPost, "/api/form/open", fmt.Sprintf(`{"eventId":%q}`, id)))
	if !st.IsEditing || st.CurrentEvent == nil || st.CurrentEvent.ID != id || st.SelectedDate.Day() != 20 {
		t.Fatalf("state = %+v", st)
	}
	if rec := do(t, h, http.MethodPost, "/api/form/open", `{"eventId":"missing"}`); rec.Code != http.StatusNotFound {
		t.Errorf("open unknown = %d", rec.Code)
	}

	rec := do(t, h, http.MethodPost, "/api/form/remove", fmt.Sprintf(`{"id":%q}`, id))
	if rec.Code != http.StatusOK {
		t.Fatalf("remove = %d", rec.Code)
	}
	if st := decode[calendar.State](t, rec); st.ShowEventForm || st.EventCount != 0 {
		t.Errorf("state after remove = %+v", st)
	}
}

func TestDragEnd(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	created := decode[[]model.Event](t, do(t, h, http.MethodPost, "/api/events", eventJSON("Drag me", "2024-06-15", "09:00", "10:00")))
	id := created[0].ID

	do(t, h, http.MethodPost, "/api/drag/start", "")
	resp := decode[dragEndResponse](t, do(t, h, http.MethodPost, "/api/drag/end", fmt.Sprintf(`{"destination":null,"draggableId":%q}`, id)))
	if resp.Moved || resp.State.IsDragging {
		t.Errorf("cancelled drag = %+v", resp)
	}

	resp = decode[dragEndResponse](t, do(t, h, http.MethodPost, "/api/drag/end",
		fmt.Sprintf(`{"destination":{"droppableId":"2024-06-21"},"draggableId":%q}`, id)))
	if !resp.Moved {
		t.Fatal("drop not applied")
	}
	got := decode[[]model.Event](t, do(t, h, http.MethodGet, "/api/days/2024-06-21/events", ""))
	if len(got) != 1 || got[0].ID != id {
		t.Errorf("events on drop day = %+v", got)
	}
}

func TestMonthNavigation(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	do(t, h, http.MethodPost, "/api/events", eventJSON("In July", "2024-07-04", "09:00", "10:00"))

	m := decode[monthResponse](t, do(t, h, http.MethodPost, "/api/month/next", ""))
	if m.Label != "July 2024" || len(m.Grid.Days) != 31 {
		t.Fatalf("month = %s with %d days", m.Label, len(m.Grid.Days))
	}
	if len(m.Events["2024-07-04"]) != 1 {
		t.Errorf("month events = %+v", m.Events)
	}
	m = decode[monthResponse](t, do(t, h, http.MethodPost, "/api/month/prev", ""))
	if m.Label != "June 2024" {
		t.Errorf("label = %s", m.Label)
	}
}

func TestConflictsEndpoint(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	do(t, h, http.MethodPost, "/api/events", eventJSON("Busy", "2024-06-15", "09:00", "10:00"))

	resp := decode[conflictsResponse](t, do(t, h, http.MethodPost, "/api/conflicts", eventJSON("Probe", "2024-06-15", "09:59", "11:00")))
	if len(resp.Conflicts) != 1 || resp.Message == "" {
		t.Errorf("overlap = %+v", resp)
	}
	resp = decode[conflictsResponse](t, do(t, h, http.MethodPost, "/api/conflicts", eventJSON("Probe", "2024-06-15", "10:00", "11:00")))
	if len(resp.Conflicts) != 0 {
		t.Errorf("adjacent = %+v", resp)
	}
}

func TestExportImport(t *testing.T) {
	src := newTestServer(t, nil)
	h := src.Handler()
	do(t, h, http.MethodPost, "/api/events", eventJSON("Exported", "2024-06-15", "09:00", "10:00"))

	rec := do(t, h, http.MethodGet, "/api/export.ics", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar") {
		t.Fatalf("export = %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	feed := rec.Body.String()
	if !strings.Contains(feed, "SUMMARY:Exported") {
		t.Fatalf("feed = %s", feed)
	}

	dst := newTestServer(t, nil).Handler()
	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader(feed))
	req.Header.Set("Content-Type", "text/calendar")
	rec = httptest.NewRecorder()
	dst.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("import = %d %s", rec.Code, rec.Body.String())
	}
	if got := decode[importResponse](t, rec); got.Imported != 1 || got.Events[0].Title != "Exported" {
		t.Errorf("imported = %+v", got)
	}

	rec = do(t, dst, http.MethodPost, "/api/import", "not a calendar")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("garbage import = %d", rec.Code)
	}
}

func TestImportFromURL(t *testing.T) {
	feed := strings.Join([]string{
		"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//test//EN",
		"BEGIN:VEVENT", "UID:remote-1", "SUMMARY:Remote", "DTSTART:20240610T090000", "DTEND:20240610T100000",
		"RRULE:FREQ=DAILY;COUNT=3", "END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n") + "\r\n"
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer remote.Close()

	h := newTestServer(t, nil).Handler()
	rec := do(t, h, http.MethodPost, "/api/import", fmt.Sprintf(`{"url":%q}`, remote.URL+"/cal.ics"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("import = %d %s", rec.Code, rec.Body.String())
	}
	got := decode[importResponse](t, rec)
	if got.Imported != 3 {
		t.Fatalf("imported %d, want 3 daily instances", got.Imported)
	}

	rec = do(t, h, http.MethodPost, "/api/import", `{"url":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty url = %d", rec.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	hash, err := auth.HashPassword("pw")
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", PasswordHash: hash}
	h := newTestServer(t, cfg).Handler()

	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health behind auth = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/state", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous state = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.SetBasicAuth("admin", "pw")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated state = %d", rec.Code)
	}
}

func TestSnapshot(t *testing.T) {
	s := newTestServer(t, nil)
	do(t, s.Handler(), http.MethodPost, "/api/events", eventJSON("Kept", "2024-06-15", "09:00", "10:00"))

	data, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	var events []model.Event
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatalf("snapshot is not an event array: %v", err)
	}
	if len(events) != 1 || events[0].Title != "Kept" {
		t.Errorf("snapshot = %s", data)
	}
}
