package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/skillswap-api/internal/config"
	"github.com/noah-isme/skillswap-api/internal/handler"
	"github.com/noah-isme/skillswap-api/internal/middleware"
	"github.com/noah-isme/skillswap-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SessionHandler      *handler.SessionHandler
	ProfileHandler      *handler.ProfileHandler
	ConversationHandler *handler.ConversationHandler
	ActivityHandler     *handler.ActivityHandler
	JWTMiddleware       fiber.Handler
	SignInLimiter       fiber.Handler
	HealthProbes        map[string]handler.Probe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	// Without a verifier every protected route still needs an identity.
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.WithAuth(func(c *fiber.Ctx) error { return c.Next() }, middleware.AuthOptions{RequireUser: true})
	}

	if deps.SessionHandler != nil {
		session := api.Group("/session")
		if deps.SignInLimiter != nil {
			session.Use(deps.SignInLimiter)
		}
		deps.SessionHandler.Register(session, jwtMiddleware)
	}

	if deps.ProfileHandler != nil {
		deps.ProfileHandler.Register(api.Group("/profiles", jwtMiddleware))
	}

	if deps.ConversationHandler != nil {
		deps.ConversationHandler.Register(api.Group("/conversations", jwtMiddleware))
	}

	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(api.Group("/activities", jwtMiddleware))
	}
}
