package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/loginsentry/internal/auth"
	"github.com/BradenHooton/loginsentry/internal/handlers"
	"github.com/BradenHooton/loginsentry/internal/middleware"
	pkghttp "github.com/BradenHooton/loginsentry/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups the HTTP handlers the router serves
type Handlers struct {
	LoginEvents *handlers.LoginEventHandler
	Alerts      *handlers.AlertHandler
	Health      *handlers.HealthHandler
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	tokenManager *auth.TokenManager,
	alertReadLimit middleware.RateLimitConfig,
	logger *slog.Logger,
) {
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "route not found")
	})

	// Unauthenticated operational endpoints
	router.Get("/health", h.Health.Health)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/v1", func(r chi.Router) {
		r.Use(auth.ServiceAuthMiddleware(tokenManager, logger))

		// Ingest is not rate limited; overload is shed by the detection dispatcher
		r.With(auth.RequireScope(auth.ScopeLoginEventsWrite)).Post("/login-events", h.LoginEvents.Ingest)

		r.With(
			auth.RequireScope(auth.ScopeAlertsRead),
			middleware.RateLimitByService(alertReadLimit),
		).Get("/users/{id}/alerts", h.Alerts.ListUserAlerts)
	})
}
