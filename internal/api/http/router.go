package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/omnichannel-support/internal/api/http/handlers"
	"github.com/spec-kit/omnichannel-support/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Customers      *handlers.CustomersHandler
	Webhooks       *handlers.WebhooksHandler
	WebChat        *handlers.WebChatHandler
	AuthMiddleware *auth.AuthMiddleware
	AgentGroup     string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health", cfg.Health.Live)
	app.Get("/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("/api")
	agent := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireGroup(cfg.AgentGroup)}

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Post("/create", cfg.Tickets.CreateTicket)
	tickets.Get("/", append(agent, cfg.Tickets.ListTickets)...)
	tickets.Get("/:id/status", cfg.Tickets.GetStatus)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", append(agent, cfg.Tickets.UpdateTicket)...)
	tickets.Put("/:id/assign", append(agent, cfg.Tickets.AssignTicket)...)
	tickets.Put("/:id", append(agent, cfg.Tickets.UpdateTicket)...)
	tickets.Post("/:id/messages", append(agent, cfg.Tickets.AddMessage)...)
	tickets.Post("/:id/message", append(agent, cfg.Tickets.AddMessage)...)

	customers := api.Group("/customers", agent...)
	customers.Get("/:id", cfg.Customers.GetCustomer)
	customers.Get("/:id/tickets", cfg.Customers.ListTickets)

	webhooks := api.Group("/webhooks")
	webhooks.Get("/facebook", cfg.Webhooks.VerifyFacebook)
	webhooks.Post("/facebook", cfg.Webhooks.Facebook)
	webhooks.Get("/whatsapp", cfg.Webhooks.VerifyWhatsApp)
	webhooks.Post("/whatsapp", cfg.Webhooks.WhatsApp)
	webhooks.Get("/twitter", cfg.Webhooks.TwitterCRC)
	webhooks.Post("/twitter", cfg.Webhooks.Twitter)
	webhooks.Post("/email", cfg.Webhooks.Email)
	webhooks.Post("/chatbot", cfg.Webhooks.Chatbot)

	if cfg.WebChat != nil {
		app.Get("/ws/chat/:session_id", cfg.WebChat.Upgrade, cfg.WebChat.Session())
	}
}
