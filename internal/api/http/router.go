package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/escalation-service/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Webhook  *handlers.WebhookHandler
	Ack      *handlers.AckHandler
	Tickets  *handlers.TicketsHandler
	Projects *handlers.ProjectsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Post("/webhook/:namespaceSlug/:projectID", cfg.Webhook.Receive)
	app.Get("/ack/:ticketID", cfg.Ack.Acknowledge)

	tickets := app.Group("/tickets")
	tickets.Get("/", cfg.Tickets.List)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Post("/:id/ack", cfg.Tickets.Acknowledge)
	tickets.Post("/:id/resolve", cfg.Tickets.Resolve)

	projects := app.Group("/projects")
	projects.Get("/", cfg.Projects.List)
	projects.Get("/:id", cfg.Projects.Get)
}
