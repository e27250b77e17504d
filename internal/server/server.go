// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"mapnav/internal/config"
	"mapnav/internal/domain/hierarchy"
	"mapnav/internal/metrics"
	"mapnav/internal/server/handlers"
	"mapnav/internal/service/session"
	"mapnav/internal/service/telemetry"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.ServerConfig,
	manager *session.Manager,
	hub *telemetry.Hub,
	index *hierarchy.Index,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Server {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Create handler dependencies
	sessionHandler := handlers.NewSessionHandler(manager)
	pointHandler := handlers.NewPointHandler(hub)
	regionHandler := handlers.NewRegionHandler(index)

	// Routes
	router.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		// API version
		r.Route("/v1", func(r chi.Router) {
			// Sessions API
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", sessionHandler.CreateSession)
				r.Get("/{id}", sessionHandler.GetSession)
				r.Delete("/{id}", sessionHandler.DeleteSession)
				r.Post("/{id}/click", sessionHandler.Click)
				r.Post("/{id}/hover", sessionHandler.Hover)
				r.Post("/{id}/transitions", sessionHandler.ApplyTransition)
				r.Put("/{id}/viewport", sessionHandler.SetViewport)
				r.Post("/{id}/box-select", sessionHandler.BoxSelect)
				r.Get("/{id}/highlight", sessionHandler.Highlight)
			})

			// Live points API
			r.Route("/points", func(r chi.Router) {
				r.Get("/", pointHandler.GetPoints)
				r.Get("/{key}", pointHandler.GetRecord)
			})

			// Hierarchy API
			r.Route("/regions", func(r chi.Router) {
				r.Get("/counts", regionHandler.GetCounts)
				r.Get("/{id}", regionHandler.GetRegion)
				r.Get("/{id}/children", regionHandler.GetChildren)
				r.Get("/departments/{code}", regionHandler.GetDepartment)
			})
		})
	})

	// WebSocket endpoint for dashboard event push
	router.Get("/ws/sessions/{id}", handlers.SessionWebSocketHandler(manager, logger))

	// Prometheus metrics
	if m != nil {
		router.Handle("/metrics", m.Handler())
	}

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}
