// Package server provides the HTTP surface: health, live state, the
// audio start gate, the camera stream and the sample bank API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handsynth/internal/engine"
	"github.com/ayusman/handsynth/internal/logging"
	"github.com/ayusman/handsynth/internal/server/api"
	"github.com/ayusman/handsynth/internal/store"
)

// Engine is the part of the pipeline engine the server drives.
type Engine interface {
	Latest() engine.State
	StartAudio() error
}

// Pipeline publishes states and camera frames.
type Pipeline interface {
	Subscribe() (<-chan engine.State, func())
	// Snapshot returns a copy of the last frame; the caller closes it.
	Snapshot() (gocv.Mat, bool)
}

// Config holds the server configuration. Nil fields disable their routes.
type Config struct {
	StaticDir string
	Store     *store.Store
	Engine    Engine
	Pipeline  Pipeline
	Samples   api.Reloader
	Prefs     api.Preferences

	// StreamFPS caps the MJPEG stream rate.
	StreamFPS int
}

// Server represents the HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Engine != nil {
		s.mux.HandleFunc("/api/state", s.handleState)
		s.mux.HandleFunc("/api/audio/start", s.handleStartAudio)
	}

	if s.config.Pipeline != nil {
		s.mux.Handle("/api/state/ws", NewStateHandler(s.config.Pipeline, s.config.Engine))
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Pipeline, s.config.StreamFPS))
	}

	if s.config.Store != nil {
		samples := api.NewSamplesHandler(s.config.Store, s.config.Samples)
		s.mux.Handle("/api/samples", samples)
		s.mux.Handle("/api/samples/", samples)

		if s.config.Prefs != nil {
			settings := api.NewSettingsHandler(s.config.Store, s.config.Prefs)
			s.mux.Handle("/api/settings", settings)
			s.mux.Handle("/api/settings/", settings)
		}
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Debug("encode response", "err", err)
	}
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

// handleState handles GET /api/state with the latest engine state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.config.Engine.Latest())
}

// handleStartAudio handles POST /api/audio/start, the click-to-start gate.
func (s *Server) handleStartAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.config.Engine.StartAudio(); err != nil {
		logging.Error("start audio", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"audio_started": true})
}

// Serve listens on addr until ctx is cancelled, then shuts down.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		// Streams and sockets end with ctx.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("web UI listening", "addr", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if e := <-errCh; e != nil && !errors.Is(e, http.ErrServerClosed) {
			return e
		}
		return err
	}
}
