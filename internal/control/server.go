// SPDX-License-Identifier: EPL-2.0

// Package control exposes an engine and its tracks over HTTP, with engine
// events streamed to websocket clients.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ik5/audtrack/engine"
	"github.com/ik5/audtrack/internal/logger"
	"github.com/ik5/audtrack/timeline"
)

type Server struct {
	eng *engine.Engine
	reg *timeline.Registry
	log *zap.Logger

	mu     sync.RWMutex
	groups map[string]*timeline.Group

	router   *mux.Router
	upgrader websocket.Upgrader
	hub      *hub
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithOrigins accepts websocket upgrades from origins besides the
// server's own host.
func WithOrigins(origins ...string) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || o == "http://"+r.Host || slices.Contains(origins, o)
		}
	}
}

func New(eng *engine.Engine, reg *timeline.Registry, opts ...Option) *Server {
	s := &Server{
		eng:    eng,
		reg:    reg,
		groups: make(map[string]*timeline.Group),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Named("control")
	}
	s.hub = newHub(s.log)
	s.routes()
	return s
}

func (s *Server) routes() {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/modes", s.handleModes).Methods(http.MethodPut)
	api.HandleFunc("/rate", s.handleRate).Methods(http.MethodPut)

	api.HandleFunc("/devices", s.handleDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices/check", s.handleCheckDevices).Methods(http.MethodPost)
	api.HandleFunc("/devices/{kind:output|input}", s.handleSelectDevice).Methods(http.MethodPut)

	api.HandleFunc("/transport/{dir:playback|recording}/{action:start|stop|pause|resume}", s.handleTransport).
		Methods(http.MethodPost)

	api.HandleFunc("/groups", s.handleGroups).Methods(http.MethodGet)
	api.HandleFunc("/groups", s.handleCreateGroup).Methods(http.MethodPost)
	api.HandleFunc("/groups/{name}", s.handleUpdateGroup).Methods(http.MethodPut)

	api.HandleFunc("/tracks", s.handleTracks).Methods(http.MethodGet)
	api.HandleFunc("/tracks", s.handleCreateTrack).Methods(http.MethodPost)
	api.HandleFunc("/tracks/{id}", s.handleDeleteTrack).Methods(http.MethodDelete)
	api.HandleFunc("/tracks/{id}/attributes", s.handleAttributes).Methods(http.MethodPut)
	api.HandleFunc("/tracks/{id}/blocks", s.handleBlocks).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{id}/summary", s.handleSummary).Methods(http.MethodGet)

	r.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	s.router = r
}

func (s *Server) Handler() http.Handler { return s.router }

// AddGroup makes g addressable by its name.
func (s *Server) AddGroup(g *timeline.Group) {
	s.mu.Lock()
	s.groups[g.Name()] = g
	s.mu.Unlock()
}

func (s *Server) group(name string) (*timeline.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[name]
	return g, ok
}

// Run forwards engine events to websocket clients until ctx is done or the
// engine closes its event channel.
func (s *Server) Run(ctx context.Context) error {
	events := s.eng.Events()
	for {
		select {
		case <-ctx.Done():
			s.hub.closeAll()
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				s.hub.closeAll()
				return nil
			}
			s.hub.broadcast(ev)
		}
	}
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("control server listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, engine.ErrNoGroup),
		errors.Is(err, engine.ErrInvalidTime),
		errors.Is(err, engine.ErrInvalidRate),
		errors.Is(err, engine.ErrUnknownDevice),
		errors.Is(err, engine.ErrUnknownMode),
		errors.Is(err, timeline.ErrInvalidTime),
		errors.Is(err, timeline.ErrInvalidRate):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrPlaybackActive),
		errors.Is(err, engine.ErrRecordingActive),
		errors.Is(err, engine.ErrNotPlaying),
		errors.Is(err, engine.ErrNotPaused),
		errors.Is(err, engine.ErrReadonlyTarget),
		errors.Is(err, timeline.ErrReadonly),
		errors.Is(err, timeline.ErrClosed):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

var (
	errNotFound   = errors.New("not found")
	errBadRequest = errors.New("bad request")
)
