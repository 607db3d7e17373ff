// Package server exposes the simulation over HTTP: read-only JSON views of
// formations and cars, a websocket feed of broadcasts and the metrics scrape
// endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/railsim/formation/internal/broadcast"
	"github.com/railsim/formation/internal/sim"
	"github.com/railsim/formation/pkg/core"
)

const (
	writeTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// State is the read side of the simulation served by the HTTP routes.
type State interface {
	Formations() []core.FormationRecord
	Formation(id core.FormationID) (core.FormationRecord, bool)
	Cars() []core.CarRecord
	Status() sim.Status
}

// Dependencies holds the collaborators of a Server. Metrics is optional.
type Dependencies struct {
	State   State
	Hub     *broadcast.Hub
	Metrics http.Handler
	Logger  *slog.Logger
}

type Server struct {
	deps     Dependencies
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func New(deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		deps: deps,
		log:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthcheck", s.healthcheck)
	r.Get("/status", s.status)
	r.Get("/formations", s.formations)
	r.Get("/formations/{id}", s.formation)
	r.Get("/cars", s.cars)
	r.Get("/ws", s.observe)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics)
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) healthcheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	type statusResponse struct {
		sim.Status
		Observers int `json:"observers"`
	}
	resp := statusResponse{Status: s.deps.State.Status()}
	if s.deps.Hub != nil {
		resp.Observers = s.deps.Hub.Observers()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) formations(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.State.Formations())
}

func (s *Server) formation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid formation id", http.StatusBadRequest)
		return
	}
	rec, ok := s.deps.State.Formation(core.FormationID(id))
	if !ok {
		http.Error(w, "formation not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) cars(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.State.Cars())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("Failed to encode response", "error", err)
	}
}

// observe upgrades the request and streams broadcasts until either side
// goes away. Client messages are read only to notice the close.
func (s *Server) observe(w http.ResponseWriter, r *http.Request) {
	if s.deps.Hub == nil {
		http.Error(w, "observers disabled", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub, err := s.deps.Hub.Join()
	if err != nil {
		s.log.Error("Failed to join observer", "error", err)
		return
	}
	defer s.deps.Hub.Leave(sub.ID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case data, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "observer too slow"),
					time.Now().Add(writeTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug("Observer write failed", "observer", sub.ID, "error", err)
				return
			}
		}
	}
}
