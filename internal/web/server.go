// Package web exposes the calendar controller over a JSON HTTP API.
package web

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"eventcal/internal/auth"
	"eventcal/internal/calendar"
	"eventcal/internal/config"
	"eventcal/internal/ics"
	appLog "eventcal/internal/log"
)

// Server serializes every controller call behind mu; the controller
// itself is single-threaded.
type Server struct {
	cfg     *config.Config
	fetcher *ics.Fetcher

	mu   sync.Mutex
	ctrl *calendar.Controller
}

// NewServer wraps ctrl. A nil fetcher gets the default one.
func NewServer(cfg *config.Config, ctrl *calendar.Controller, fetcher *ics.Fetcher) *Server {
	if fetcher == nil {
		fetcher = ics.NewFetcher(nil)
	}
	return &Server{cfg: cfg, ctrl: ctrl, fetcher: fetcher}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(accessLog)

	if s.cfg != nil && s.cfg.AuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "user", s.cfg.BasicAuth.Username)
		r.Use(auth.BasicAuth("eventcal", s.cfg.BasicAuth.Username, s.cfg.BasicAuth.PasswordHash, "/health"))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Put("/search", s.handleSearch)
		r.Put("/selected", s.handleSelected)

		r.Get("/month", s.handleMonth)
		r.Post("/month/next", s.handleMonthNext)
		r.Post("/month/prev", s.handleMonthPrev)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.handleListEvents)
			r.Post("/", s.handleCreateEvent)
			r.Put("/{id}", s.handleUpdateEvent)
			r.Delete("/{id}", s.handleDeleteEvent)
		})
		r.Get("/days/{day}/events", s.handleDayEvents)
		r.Post("/conflicts", s.handleConflicts)

		r.Post("/form/open", s.handleFormOpen)
		r.Post("/form/close", s.handleFormClose)
		r.Post("/form/submit", s.handleFormSubmit)
		r.Post("/form/remove", s.handleFormRemove)

		r.Post("/drag/start", s.handleDragStart)
		r.Post("/drag/end", s.handleDragEnd)

		r.Get("/export.ics", s.handleExport)
		r.Post("/import", s.handleImport)
	})

	return r
}

// Snapshot returns the persisted form of the collection. It takes the
// same lock as the handlers, so backups never observe a half-applied
// mutation.
func (s *Server) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Snapshot()
}
