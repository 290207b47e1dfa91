package router_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/trailmate-chat/internal/config"
	"github.com/noah-isme/trailmate-chat/internal/handler"
	"github.com/noah-isme/trailmate-chat/internal/middleware"
	"github.com/noah-isme/trailmate-chat/internal/router"
)

func TestRegisterHealthAndMetrics(t *testing.T) {
	app := fiber.New()
	router.Register(app, config.Config{AppName: "trailmate-chat"}, router.Dependencies{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "trailmate-chat", resp.Header.Get("X-Application"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRegisterProtectsChatRoutes(t *testing.T) {
	app := fiber.New()
	logger := zerolog.New(io.Discard)
	router.Register(app, config.Config{AppName: "trailmate-chat"}, router.Dependencies{
		ChatHandler:   handler.NewChatHandler(nil, nil, validator.New(), logger),
		JWTMiddleware: middleware.JWTProtected("secret"),
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/chats/1/messages", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
