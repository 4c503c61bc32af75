// Package api provides HTTP handlers and the main API server logic for CoachFlow.
//
// It exposes RESTful endpoints for starting coaching sessions, exchanging
// messages, transitioning stages, and listing topics. The API delegates all
// conversation logic to the flow engine.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/growthloop/coachflow/internal/flow"
)

// Server timeout configuration constants
const (
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration for the API server.
type Opts struct {
	Addr           string
	AllowedOrigins []string
}

// Option configures Opts.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAllowedOrigins sets the CORS origin allowlist.
func WithAllowedOrigins(origins []string) Option {
	return func(o *Opts) { o.AllowedOrigins = origins }
}

// Server hosts the CoachFlow HTTP API.
type Server struct {
	engine         *flow.Engine
	addr           string
	allowedOrigins []string
}

// NewServer creates an API server around a flow engine.
func NewServer(engine *flow.Engine, opts ...Option) *Server {
	cfg := Opts{
		Addr:           ":8080",
		AllowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		engine:         engine,
		addr:           cfg.Addr,
		allowedOrigins: cfg.AllowedOrigins,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(CORS(s.allowedOrigins))

	r.Get("/health", s.healthHandler)
	r.Route("/api", func(r chi.Router) {
		r.Get("/topics", s.topicsHandler)
		r.Post("/sessions", s.startSessionHandler)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSessionHandler)
			r.Post("/messages", s.sendMessageHandler)
			r.Post("/stage", s.transitionStageHandler)
		})
	})
	return r
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Router(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}

	slog.Info("CoachFlow API running", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}
