package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Role checks that depend on the ticket itself
// happen in the service; the route guards only reject what no ticket could allow.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/stats", cfg.Tickets.Stats)
	tickets.Post("/backfill", auth.RequireRole(domain.RoleTechnician), cfg.Tickets.Backfill)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Put("/:id/assign", cfg.Tickets.AssignTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)

	users := app.Group("/users", cfg.AuthMiddleware.Handle)
	users.Get("/me", cfg.Users.Me)
	users.Post("/technicians", auth.RequireRole(domain.RoleAdmin), cfg.Users.CreateTechnician)
	users.Get("/technicians", auth.RequireRole(domain.RoleTechnician, domain.RoleAdmin), cfg.Users.ListTechnicians)
}
