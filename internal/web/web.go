// Package web serves the schedule views and the JSON API.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"gabinet/internal/config"
	"gabinet/internal/csvimport"
	"gabinet/internal/kanban"
	appLog "gabinet/internal/log"
	"gabinet/internal/model"
	"gabinet/internal/schedule"
	"gabinet/internal/store"
)

// Store is the persistence the handlers need; *store.Store implements it.
type Store interface {
	ListAppointments(ctx context.Context, from, to string) ([]model.Appointment, error)
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	CreateAppointment(ctx context.Context, a *model.Appointment) error
	CreateSeries(ctx context.Context, appts []model.Appointment) ([]model.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id string, status model.AppointmentStatus) error

	Board(ctx context.Context, pipelineID string) (kanban.Board, error)
	CardPipeline(ctx context.Context, cardID string) (string, error)
	kanban.Mover

	csvimport.BatchCreator
}

type Server struct {
	cfg    *config.Config
	store  Store
	scale  schedule.Scale
	loc    *time.Location
	router *mux.Router

	// now is replaced in tests.
	now func() time.Time

	// The published calendar is rebuilt at most every feedCacheTTL and
	// dropped on every appointment write.
	feedMu    sync.RWMutex
	feedCache *feedCache
}

// NewServer validates the schedule settings in cfg and wires the routes.
func NewServer(cfg *config.Config, st Store) (*Server, error) {
	scale, err := cfg.Scale()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		store:  st,
		scale:  scale,
		loc:    loc,
		router: mux.NewRouter(),
		now:    time.Now,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	r := s.router
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/schedule/day", s.handleDayPage).Methods(http.MethodGet)
	r.HandleFunc("/schedule/week", s.handleWeekPage).Methods(http.MethodGet)
	r.HandleFunc("/calendar.ics", s.handleCalendarFeed).Methods(http.MethodGet)
	r.HandleFunc("/preview.png", s.handlePreview).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/schedule/day", s.handleDay).Methods(http.MethodGet)
	api.HandleFunc("/schedule/week", s.handleWeek).Methods(http.MethodGet)
	api.HandleFunc("/schedule/slot", s.handleSlot).Methods(http.MethodGet)
	api.HandleFunc("/slots", s.handleFreeSlots).Methods(http.MethodGet)

	api.HandleFunc("/appointments", s.handleListAppointments).Methods(http.MethodGet)
	api.HandleFunc("/appointments", s.handleCreateAppointment).Methods(http.MethodPost)
	api.HandleFunc("/appointments/{id}", s.handleGetAppointment).Methods(http.MethodGet)
	api.HandleFunc("/appointments/{id}/status", s.handleUpdateStatus).Methods(http.MethodPatch)

	api.HandleFunc("/pipelines/{id}/board", s.handleBoard).Methods(http.MethodGet)
	api.HandleFunc("/cards/{id}/drop", s.handleDrop).Methods(http.MethodPost)

	api.HandleFunc("/import/{entity}", s.handleImport).Methods(http.MethodPost)

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// Handler returns the router, behind basic auth when it is configured.
func (s *Server) Handler() http.Handler {
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled")
		return s.basicAuthMiddleware(s.router)
	}
	return s.router
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) basicAuthEnabled() bool {
	ba := s.cfg.BasicAuth
	return ba != nil && ba.Username != "" && ba.Password != ""
}

// basicAuthMiddleware protects everything except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Gabinet", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/schedule/day", http.StatusFound)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, s.cfg.Snapshot.Path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// writeStoreError maps domain errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, kanban.ErrUnknownCard),
		errors.Is(err, csvimport.ErrUnknownEntity):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalid),
		errors.Is(err, kanban.ErrUnknownTarget):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
