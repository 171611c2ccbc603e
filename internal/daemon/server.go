package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ihavespoons/attn/internal/audit"
	"github.com/ihavespoons/attn/internal/config"
	"github.com/ihavespoons/attn/internal/logger"
	"github.com/ihavespoons/attn/internal/notify"
	"github.com/ihavespoons/attn/internal/session"
)

const defaultPort = 8742

// Server is the local status API. It binds loopback only; the socket
// listener is the sole ingestion path and this server never mutates
// session state beyond the explicit pause and clear operations.
type Server struct {
	httpServer  *http.Server
	handlers    *Handlers
	broadcaster *SSEBroadcaster
	lifecycle   *Lifecycle
	port        int
}

// NewServer creates a new status API server.
func NewServer(cfg *config.Manager, registry *session.Registry, dispatcher *notify.Dispatcher, store *audit.Store, version string) *Server {
	handlers := NewHandlers(registry, dispatcher, cfg, store, version)
	broadcaster := NewSSEBroadcaster(handlers)
	lifecycle := NewLifecycle(cfg.Settings().Daemon)

	port := cfg.Settings().Daemon.Port
	if port == 0 {
		port = defaultPort
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handlers.Health)
	mux.HandleFunc("GET /api/sessions", handlers.Sessions)
	mux.HandleFunc("GET /api/summary", handlers.Summary)
	mux.HandleFunc("GET /api/log", handlers.Log)
	mux.HandleFunc("POST /api/notify/test", handlers.NotifyTest)
	mux.HandleFunc("POST /api/pause", handlers.Pause)
	mux.HandleFunc("POST /api/sessions/clear-completed", handlers.ClearCompleted)
	mux.HandleFunc("DELETE /api/sessions/{id}", handlers.RemoveSession)

	mux.HandleFunc("GET /sse/events", broadcaster.ServeHTTP)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", port),
			Handler:           corsMiddleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
		handlers:    handlers,
		broadcaster: broadcaster,
		lifecycle:   lifecycle,
		port:        port,
	}
}

// Start writes the PID file and begins serving.
func (s *Server) Start(ctx context.Context) error {
	if err := s.lifecycle.WritePID(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	s.broadcaster.Start(ctx)

	logger.Info().
		Int("port", s.port).
		Str("url", fmt.Sprintf("http://127.0.0.1:%d", s.port)).
		Msg("Starting status API")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Status API error")
		}
	}()

	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	logger.Info().Msg("Stopping status API")

	s.broadcaster.Stop()
	_ = s.lifecycle.RemovePID()

	return s.httpServer.Shutdown(ctx)
}

// Port returns the server port.
func (s *Server) Port() int {
	return s.port
}

// Lifecycle returns the lifecycle manager.
func (s *Server) Lifecycle() *Lifecycle {
	return s.lifecycle
}

func corsMiddleware(next http.Handler) http.Handler {
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
