package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/trailmate-chat/internal/config"
	"github.com/noah-isme/trailmate-chat/internal/handler"
	"github.com/noah-isme/trailmate-chat/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ChatHandler     *handler.ChatHandler
	UploadHandler   *handler.UploadHandler
	UserHandler     *handler.UserHandler
	InviteHandler   *handler.InviteHandler
	ActivityHandler *handler.ActivityHandler
	HealthProbes    map[string]handler.HealthProbe
	JWTMiddleware   fiber.Handler
	// FilesDir is served under /files when attachments are stored on disk.
	FilesDir string
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	observability.Mount(app)

	if deps.FilesDir != "" {
		app.Static("/files", deps.FilesDir)
	}

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	protected := api.Group("", jwtMiddleware)

	if deps.ChatHandler != nil {
		deps.ChatHandler.Register(protected)
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.Register(protected.Group("/uploads"))
	}
	if deps.UserHandler != nil {
		deps.UserHandler.Register(protected)
	}
	if deps.InviteHandler != nil {
		deps.InviteHandler.Register(protected)
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(protected)
	}
}
