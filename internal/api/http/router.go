package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/facility-desk/internal/api/http/handlers"
	"github.com/spec-kit/facility-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Push           *handlers.PushHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	authenticated := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireRole()}

	app.Get("/areas", append(authenticated, cfg.Tickets.ListAreas)...)

	tickets := app.Group("/tickets", authenticated...)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Patch("/", cfg.Tickets.BulkUpdate)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)

	push := app.Group("/push", authenticated...)
	push.Get("/vapid-public-key", cfg.Push.PublicKey)
	push.Post("/subscriptions", cfg.Push.Subscribe)
	push.Delete("/subscriptions", cfg.Push.Unsubscribe)
}
