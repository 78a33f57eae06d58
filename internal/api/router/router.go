package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/azgovernor/azgovernor/internal/api/handlers"
	"github.com/azgovernor/azgovernor/internal/api/middleware"
	"github.com/azgovernor/azgovernor/internal/config"
	"github.com/azgovernor/azgovernor/internal/pkg/logger"
	"github.com/azgovernor/azgovernor/internal/pkg/metrics"
)

type Handlers struct {
	Health     *handlers.HealthHandler
	Assessment *handlers.AssessmentHandler
}

func New(cfg *config.Config, log *logger.Logger, h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(nil))
	r.Use(middleware.RateLimit(100, 200)) // 100 req/sec, burst of 200
	r.Use(metrics.Middleware)

	// Health checks
	r.Get("/health", h.Health.Healthz)
	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)

	// Prometheus metrics
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	// Assessments
	r.Route("/api/v1/assessments", func(r chi.Router) {
		r.Post("/", h.Assessment.Start)
		r.Get("/pending", h.Assessment.Pending)
		r.Get("/{id}", h.Assessment.Get)
		r.Get("/{id}/findings", h.Assessment.Findings)
		r.Post("/{id}/cancel", h.Assessment.Cancel)
	})

	return r
}
