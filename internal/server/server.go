// Package server provides the HTTP and websocket API for meetsearch.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/openmeetings/meetsearch/internal/config"
	"github.com/openmeetings/meetsearch/internal/engine"
	"go.uber.org/zap"
)

// Backend is what the server needs from a search engine.
type Backend interface {
	engine.Executor
	engine.MeetingSource
}

// Server is the HTTP server for the meetsearch API.
type Server struct {
	backend  Backend
	config   *config.Config
	location *time.Location
	logger   *zap.Logger
	upgrader websocket.Upgrader
	server   *http.Server
	sessions *sessionRegistry
}

// NewServer creates a server with the given dependencies. The search location is resolved
// from cfg; an invalid location is an error.
func NewServer(backend Backend, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	loc, err := cfg.Search.LoadLocation()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		backend:  backend,
		config:   cfg,
		location: loc,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sessions: newSessionRegistry(),
	}, nil
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Use(middleware.Compress(5))
			r.Get("/search", s.handleSearch)
			r.Get("/meetings/{id}", s.handleGetMeeting)
		})
		r.Get("/session", s.handleSession)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server and closes open search sessions.
func (s *Server) Stop(ctx context.Context) error {
	s.sessions.closeAll()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
