package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/porthole/porthole/internal/capture"
	"github.com/porthole/porthole/internal/logger"
	"github.com/porthole/porthole/internal/output"
	"github.com/porthole/porthole/internal/pointer"
	"github.com/porthole/porthole/internal/runloop"
	"github.com/porthole/porthole/internal/selection"
	"github.com/porthole/porthole/internal/window"
)

// Version is reported by the health endpoint
const Version = "0.1.0"

// Controller is the part of the selection controller the API drives
type Controller interface {
	Snapshot() selection.State
	BeginSelection() error
	EndSelection()
	CaptureWindow(h window.Handle) error
	StopCapture()
	Subscribe() chan selection.State
	Unsubscribe(ch chan selection.State)
}

// Windows lists pickable windows
type Windows interface {
	ListVisibleWindows() []window.Info
}

// StatsSource reports capture counters
type StatsSource interface {
	Stats() capture.Stats
}

// Server represents the HTTP API server. Every handler that touches
// controller state runs its work on the run loop.
type Server struct {
	router   *mux.Router
	loop     *runloop.Loop
	ctrl     Controller
	windows  Windows
	stats    StatsSource
	stream   *output.MJPEGOutput
	upgrader websocket.Upgrader
}

// NewServer creates a new API server. stream may be nil.
func NewServer(loop *runloop.Loop, ctrl Controller, windows Windows, stats StatsSource, stream *output.MJPEGOutput) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		loop:    loop,
		ctrl:    ctrl,
		windows: windows,
		stats:   stats,
		stream:  stream,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local tool, viewer may be opened from anywhere
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Selection state
	api.HandleFunc("/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/state/stream", s.handleStateStream)
	api.HandleFunc("/windows", s.handleGetWindows).Methods("GET")
	api.HandleFunc("/selection", s.handleBeginSelection).Methods("POST")
	api.HandleFunc("/selection", s.handleEndSelection).Methods("DELETE")

	// Capture
	api.HandleFunc("/capture", s.handleCaptureWindow).Methods("POST")
	api.HandleFunc("/capture", s.handleStopCapture).Methods("DELETE")
	api.HandleFunc("/capture/stats", s.handleCaptureStats).Methods("GET")

	if s.stream != nil {
		s.router.HandleFunc("/stream", s.stream.HTTPHandler()).Methods("GET")
		s.router.HandleFunc("/", s.stream.ViewerHandler()).Methods("GET")
	}
}

// Handler returns the routed handler with CORS headers applied
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	log := logger.WithComponent("api")
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Starting API server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// call runs fn on the loop, answering 503 if the loop is gone
func (s *Server) call(w http.ResponseWriter, r *http.Request, fn func()) bool {
	if err := s.loop.Call(r.Context(), fn); err != nil {
		logger.WithComponent("api").Debug().Err(err).Str("path", r.URL.Path).Msg("Request not served")
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HTTP Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	var state selection.State
	if !s.call(w, r, func() { state = s.ctrl.Snapshot() }) {
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleGetWindows(w http.ResponseWriter, r *http.Request) {
	var windows []window.Info
	if !s.call(w, r, func() { windows = s.windows.ListVisibleWindows() }) {
		return
	}
	writeJSON(w, http.StatusOK, windows)
}

func (s *Server) handleBeginSelection(w http.ResponseWriter, r *http.Request) {
	var (
		state selection.State
		err   error
	)
	if !s.call(w, r, func() {
		err = s.ctrl.BeginSelection()
		state = s.ctrl.Snapshot()
	}) {
		return
	}

	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pointer.ErrTapUnavailable) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleEndSelection(w http.ResponseWriter, r *http.Request) {
	var state selection.State
	if !s.call(w, r, func() {
		s.ctrl.EndSelection()
		state = s.ctrl.Snapshot()
	}) {
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleCaptureWindow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WindowID window.Handle `json:"window_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.WindowID == 0 {
		http.Error(w, "window_id is required", http.StatusBadRequest)
		return
	}

	var (
		state selection.State
		err   error
	)
	if !s.call(w, r, func() {
		err = s.ctrl.CaptureWindow(req.WindowID)
		state = s.ctrl.Snapshot()
	}) {
		return
	}

	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, window.ErrWindowGone) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleStopCapture(w http.ResponseWriter, r *http.Request) {
	var state selection.State
	if !s.call(w, r, func() {
		s.ctrl.StopCapture()
		state = s.ctrl.Snapshot()
	}) {
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleCaptureStats(w http.ResponseWriter, r *http.Request) {
	var stats capture.Stats
	if !s.call(w, r, func() { stats = s.stats.Stats() }) {
		return
	}

	resp := struct {
		Capture capture.Stats `json:"capture"`
		Stream  *output.Stats `json:"stream,omitempty"`
	}{Capture: stats}
	if s.stream != nil {
		streamStats := s.stream.Stats()
		resp.Stream = &streamStats
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStateStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// Subscribe before reading the initial state so no change is missed
	updates := s.ctrl.Subscribe()
	defer s.ctrl.Unsubscribe(updates)

	var current selection.State
	if err := s.loop.Call(r.Context(), func() { current = s.ctrl.Snapshot() }); err != nil {
		return
	}
	if err := conn.WriteJSON(current); err != nil {
		log.Debug().Err(err).Msg("WebSocket write failed")
		return
	}

	// The client never sends anything; reading detects the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case state, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(state); err != nil {
				log.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		}
	}
}
