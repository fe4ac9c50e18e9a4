package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/conversation-queue-service/internal/api/http/handlers"
	"github.com/spec-kit/conversation-queue-service/internal/auth"
	"github.com/spec-kit/conversation-queue-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Agents         *handlers.AgentsHandler
	Queue          *handlers.QueueHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/agents/login", cfg.Agents.Login)

	protectedAuth := authGroup.Group("", cfg.AuthMiddleware.Handle)
	protectedAuth.Post("/agents/register", auth.RequireRole(domain.AgentRoleAdmin), cfg.Agents.Register)

	queueGroup := app.Group("/queue", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	queueGroup.Get("/stats", cfg.Queue.Stats)
	queueGroup.Get("/items", cfg.Queue.Items)
	queueGroup.Get("/my-assignments", cfg.Queue.MyAssignments)
	queueGroup.Get("/advogados-status", cfg.Queue.AgentStatuses)
	queueGroup.Post("/enqueue", cfg.Queue.Enqueue)
	queueGroup.Post("/accept-next", cfg.Queue.AcceptNext)
	queueGroup.Put("/status", cfg.Queue.SetStatus)
	queueGroup.Post("/transfer", cfg.Queue.Transfer)
	queueGroup.Post("/release", cfg.Queue.Release)
	queueGroup.Post("/withdraw", cfg.Queue.Withdraw)
	queueGroup.Post("/message-activity", cfg.Queue.MessageActivity)
}
