// Package server exposes the table engine over HTTP. Authentication
// terminates upstream; the gateway forwards the caller's identity in the
// X-User-Id and X-User-Role headers, which this layer trusts.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/incisive-io/tabled/internal/config"
	"github.com/incisive-io/tabled/internal/engine"
	"github.com/incisive-io/tabled/internal/logger"
	"github.com/incisive-io/tabled/internal/storage"
)

// Server is the HTTP front of the table engine.
type Server struct {
	engine *engine.Engine
	store  storage.Store
	log    *logger.Logger
	router *chi.Mux
	server *http.Server
}

// New builds the server with its middleware and routes.
func New(cfg config.ServerConfig, eng *engine.Engine, store storage.Store, log *logger.Logger) *Server {
	s := &Server{
		engine: eng,
		store:  store,
		log:    log,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requestLogger)
	s.router.Use(identity)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/tables", s.handleGetTables)
		r.Get("/tables/{table}", s.handleGetTableConfig)

		r.Get("/tables/{table}/rows", s.handleGetTableRows)
		r.Post("/tables/{table}/rows", s.handleCreateTableRow)
		r.Get("/tables/{table}/rows/{id}", s.handleGetTableRow)
		r.Patch("/tables/{table}/rows/{id}", s.handleUpdateTableRow)
		r.Delete("/tables/{table}/rows/{id}", s.handleDeleteTableRow)

		r.Patch("/special/product-lab-markup", s.handleUpdateMarkup)
		r.Delete("/special/product-lab-markup", s.handleDeleteMarkup)
		r.Patch("/special/product-lab-rev-share", s.handleUpsertRevShare)
		r.Delete("/special/product-lab-rev-share", s.handleDeleteRevShare)

		r.Get("/lookups/labs", s.handleLookupLabs)
		r.Get("/lookups/practices", s.handleLookupPractices)
		r.Get("/lookups/products", s.handleLookupProducts)
		r.Get("/lookups/dental-groups", s.handleLookupDentalGroups)
	})
}

// Start begins serving. It blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.log.Infof("http server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
