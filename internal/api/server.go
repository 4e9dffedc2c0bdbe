// Package api provides the HTTP server and the fix endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	apimiddleware "github.com/olegiv/bugfixer-ai-go/internal/api/middleware"
	"github.com/olegiv/bugfixer-ai-go/internal/logging"
)

// DefaultWriteTimeout bounds the time spent writing one response.
const DefaultWriteTimeout = 60 * time.Second

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithWriteTimeout overrides DefaultWriteTimeout. It must exceed the longest
// route timeout or slow completions are cut off mid-response.
func WithWriteTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.writeTimeout = d
	}
}

// Server represents the HTTP server.
type Server struct {
	router       chi.Router
	httpServer   *http.Server
	log          *logging.SecureLogger
	addr         string
	writeTimeout time.Duration
}

// NewServer creates a new Server.
func NewServer(addr string, log *logging.SecureLogger, opts ...ServerOption) *Server {
	if log == nil {
		log = logging.Nop()
	}

	router := chi.NewRouter()

	// Timeout is applied per route group: the MCP endpoint streams and is
	// incompatible with chi's Timeout middleware.
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(apimiddleware.Logging(log))
	router.Use(chimiddleware.Recoverer)

	s := &Server{
		router:       router,
		addr:         addr,
		log:          log,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the chi router for registering routes.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       120 * time.Second,
	}

	s.log.Info().Str("addr", s.addr).Msg("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.log.Info().Msg("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.addr
}
