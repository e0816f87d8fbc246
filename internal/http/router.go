package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"saaskit/internal/auth"
	"saaskit/internal/config"
	"saaskit/internal/platform/metrics"
)

// Dependencies bundles what the router serves.
type Dependencies struct {
	Profiles ProfileService
	Verifier auth.Verifier
	Debug    DebugSource
	Metrics  metrics.Recorder
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	Limiter        *RateLimiter
	Logger         *zap.Logger
}

// NewRouter wires application routes and middleware using chi.
func NewRouter(cfg config.Config, deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newZapMiddleware(logger, recorder))
	if deps.Limiter != nil {
		r.Use(deps.Limiter.Middleware)
	}

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	profileHandler := NewProfileHandler(deps.Profiles, logger)
	adminHandler := NewAdminHandler(profileHandler, logger)
	debugHandler := NewDebugHandler(deps.Debug, logger)

	if deps.Verifier == nil {
		logger.Warn("bearer token verification disabled; /api endpoints are unauthenticated")
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/debug", func(r chi.Router) {
			r.Get("/profiles", debugHandler.Profiles)
			r.Get("/users", debugHandler.Users)
		})

		r.Group(func(r chi.Router) {
			r.Use(newAuthMiddleware(deps.Verifier, logger))

			r.Route("/profiles/{id}", func(r chi.Router) {
				r.Get("/", profileHandler.Get)
				r.Patch("/", profileHandler.Patch)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(adminHandler.RequireAdmin)
				r.Get("/profiles", adminHandler.List)
				r.Get("/profiles.csv", adminHandler.ExportCSV)
				r.Delete("/profiles/{id}", adminHandler.Delete)
				r.Get("/metrics", adminHandler.Metrics)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	return r
}
