package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-access/internal/api/http/handlers"
	"github.com/spec-kit/ticket-access/internal/auth"
	"github.com/spec-kit/ticket-access/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Audit          *handlers.AuditHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/users/register", cfg.Users.Register)
	authGroup.Post("/users/login", cfg.Users.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)

	tickets := protected.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/assign", cfg.Tickets.AssignTicket)
	tickets.Post("/:id/close", cfg.Tickets.CloseTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)

	protected.Post("/users/:id/role", cfg.Users.ChangeRole)

	// The audit trail is role-gated up front; per-resource decisions do not
	// apply to compliance queries.
	protected.Get("/audit", auth.RequireRole(domain.RoleAdmin), cfg.Audit.ListEntries)
}
