// Package server provides the HTTP server for the Lizard focus tracker.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/lizard/internal/app"
	"github.com/ayusman/lizard/internal/logger"
	"github.com/ayusman/lizard/internal/server/api"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	// App backs the session, report and settings routes. Without it only
	// health and static files are served.
	App    *app.App
	Logger *zap.Logger
}

// Server represents the HTTP server for the Lizard application.
type Server struct {
	config Config
	log    *zap.Logger
	mux    *http.ServeMux
	start  time.Time
	status *StatusHandler
	http   *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		log:    logger.OrNop(config.Logger).Named("server"),
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.App != nil {
		sessions := api.NewSessionHandler(s.config.App)
		s.mux.Handle("/api/session", sessions)
		s.mux.Handle("/api/session/", sessions)

		reports := api.NewReportHandler(s.config.App)
		s.mux.Handle("/api/report", reports)
		s.mux.Handle("/api/report/", reports)

		settings := api.NewSettingsHandler(s.config.App)
		s.mux.Handle("/api/settings", settings)
		s.mux.Handle("/api/calibrate", settings)

		s.status = NewStatusHandler(s.config.App, s.log)
		s.mux.Handle("/api/status/ws", s.status)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)

	s.log.Debug("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Duration("took", time.Since(started)),
	)
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer for websocket upgrades.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address and blocks
// until Shutdown is called or the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("listening", zap.String("addr", addr))
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server and closes websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.status != nil {
		s.status.Close()
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
