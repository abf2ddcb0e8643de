package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BradenHooton/bulwark/internal/handlers"
	"github.com/BradenHooton/bulwark/internal/middleware"
	"github.com/BradenHooton/bulwark/internal/protection"
	"github.com/BradenHooton/bulwark/pkg/httpx"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	guard *protection.Guard,
	authHandler *handlers.AuthHandler,
	adminHandler *handlers.AdminHandler,
	adminJWTSecret string,
	adminRateLimit middleware.RateLimitConfig,
	ipConfig *httpx.IPConfig,
) {
	// Auth endpoints run the full protection chain in a fixed order:
	// ban check, then rate recording, then account-lock check.
	router.Group(func(r chi.Router) {
		r.Use(middleware.IPBan(guard, ipConfig))
		r.Use(middleware.AuthRateLimit(guard, ipConfig))
		r.Use(middleware.AccountLock(guard))
		r.Post("/auth/login", authHandler.Login)
	})

	// Administrative read/override surface
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(adminRateLimit))
		r.Use(middleware.AdminAuth(adminJWTSecret))

		r.Get("/admin/protection/stats", adminHandler.Stats)
		r.Get("/admin/protection/bans", adminHandler.ListBans)
		r.Delete("/admin/protection/bans/{keyHash}", adminHandler.Unban)
	})

	router.Handle("/metrics", promhttp.Handler())
}
