// Package api serves the operator dashboard: statistics, run triggers,
// run progress and exports.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/lavandowski/internal/domain"
	"github.com/opensource-finance/lavandowski/internal/warehouse"
)

// Deps are the collaborators of the API. Nil components are reported as
// unavailable by the endpoints that need them.
type Deps struct {
	Warehouse domain.Warehouse
	Catalog   *warehouse.Catalog
	Cache     domain.Cache
	Bus       domain.EventBus
	Registry  *Registry
	Version   string
}

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, deps Deps) *Server {
	handler := NewHandler(deps)
	router := chi.NewRouter()

	// Tracing runs before recovery so a panic is logged with its request ID.
	router.Use(
		CORSMiddleware(cfg.AllowOrigins),
		middleware.RealIP,
		TracingMiddleware,
		LoggingMiddleware,
		RecoverMiddleware,
	)

	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Get("/stats", handler.Stats)

	router.Route("/runs", func(r chi.Router) {
		r.Post("/", handler.CreateRun)

		// Dashboards poll these while a batch runs.
		r.Group(func(r chi.Router) {
			r.Use(middleware.NoCache)
			r.Get("/", handler.ListRuns)
			r.Get("/{id}", handler.GetRun)
		})

		// CSV and JSON reports compress well; PDFs are already compressed.
		r.With(middleware.Compress(5, "text/csv", "application/json")).
			Get("/{id}/export", handler.ExportRun)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
