// Package rest wires the HTTP surface: routing, middleware, and lifecycle
// endpoints.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"schemacanvas-backend/interfaces/http/rest/handlers"
	"schemacanvas-backend/interfaces/http/rest/middleware"
	ws "schemacanvas-backend/interfaces/websocket"
	"schemacanvas-backend/pkg/observability"
)

// RouterConfig carries the router's dependencies.
type RouterConfig struct {
	ProjectHandler *handlers.ProjectHandler
	WSServer       *ws.Server
	Authenticator  *middleware.Authenticator
	Metrics        *observability.Collector
	Logger         *zap.Logger
	EnableCORS     bool
}

// NewRouter builds the chi router with the full middleware stack.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(cfg.Logger, cfg.Metrics))

	if cfg.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(cfg.Authenticator.Middleware)

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/projects", func(r chi.Router) {
				r.Get("/", cfg.ProjectHandler.List)
				r.Route("/{projectID}", func(r chi.Router) {
					r.Get("/", cfg.ProjectHandler.Get)
					r.Put("/diagram", cfg.ProjectHandler.Save)
					r.Get("/versions", cfg.ProjectHandler.ListVersions)
					r.Post("/versions/{versionID}/restore", cfg.ProjectHandler.Restore)
				})
			})
		})

		r.Get("/ws", cfg.WSServer.HandleConnection)
	})

	return r
}
