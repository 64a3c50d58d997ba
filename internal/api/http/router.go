package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/promorang/maturity-service/internal/api/http/handlers"
	"github.com/promorang/maturity-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Maturity       *handlers.MaturityHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	// Maturity endpoints tolerate anonymous callers: the service
	// degrades to a first-time snapshot when no principal is present.
	maturity := app.Group("/api/maturity", cfg.AuthMiddleware.HandleOptional)
	maturity.Get("/state", cfg.Maturity.GetState)
	maturity.Get("/visibility", cfg.Maturity.GetVisibility)
	maturity.Get("/check-access/:feature", cfg.Maturity.CheckAccess)
	maturity.Get("/transitions", cfg.Maturity.ListTransitions)
	maturity.Post("/action", cfg.Maturity.RecordAction)
	maturity.Post("/reward-received", cfg.Maturity.RewardReceived)
	maturity.Post("/recalculate", cfg.Maturity.Recalculate)
	maturity.Post("/override", cfg.Maturity.Override)

	admin := maturity.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Post("/set-operator-pro", cfg.Admin.SetOperatorPro)
}
