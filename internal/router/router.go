package router

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/noah-isme/internhub-api/internal/config"
	"github.com/noah-isme/internhub-api/internal/handler"
	"github.com/noah-isme/internhub-api/internal/middleware"
	"github.com/noah-isme/internhub-api/internal/observability"
	"github.com/noah-isme/internhub-api/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	DB                       *gorm.DB
	Registry                 *service.ConnectionRegistry
	ConversationHandler      *handler.ConversationHandler
	AdminConversationHandler *handler.AdminConversationHandler
	RealtimeHandler          *handler.RealtimeHandler
	SeedHandler              *handler.SeedHandler
	JWTMiddleware            fiber.Handler
	OptionalJWTMiddleware    fiber.Handler
	MessageRateLimit         fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DB, deps.Registry))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := orNext(deps.JWTMiddleware)
	optionalJWT := orNext(deps.OptionalJWTMiddleware)

	if deps.ConversationHandler != nil {
		conversations := api.Group("/conversations", jwtMiddleware)
		deps.ConversationHandler.Register(conversations, deps.MessageRateLimit)
	}

	if deps.AdminConversationHandler != nil {
		admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole("admin"))
		deps.AdminConversationHandler.Register(admin)
	}

	if deps.RealtimeHandler != nil {
		realtime := api.Group("/realtime", optionalJWT)
		deps.RealtimeHandler.Register(realtime)
	}

	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(api.Group("/seed"))
	}
}

func orNext(handler fiber.Handler) fiber.Handler {
	if handler != nil {
		return handler
	}
	return func(c *fiber.Ctx) error { return c.Next() }
}
