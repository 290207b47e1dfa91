package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/trailmate-chat/internal/utils"
)

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data"`
	Details map[string]string `json:"details"`
}

func serve(t *testing.T, handler fiber.Handler) (int, envelope) {
	t.Helper()
	app := fiber.New()
	app.Get("/", handler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestSuccessEnvelopes(t *testing.T) {
	status, body := serve(t, func(c *fiber.Ctx) error {
		return utils.SendCreated(c, "", map[string]string{"id": "7"})
	})
	require.Equal(t, fiber.StatusCreated, status)
	require.True(t, body.Success)
	require.Equal(t, "success", body.Message)
	require.Equal(t, "7", body.Data["id"])

	status, _ = serve(t, func(c *fiber.Ctx) error {
		return utils.SendSuccessWithStatus(c, 0, "ok", nil)
	})
	require.Equal(t, fiber.StatusOK, status)
}

func TestValidationErrorEnvelope(t *testing.T) {
	status, body := serve(t, func(c *fiber.Ctx) error {
		return utils.SendValidationError(c, map[string]string{"Text": "required"})
	})
	require.Equal(t, fiber.StatusBadRequest, status)
	require.False(t, body.Success)
	require.Equal(t, "validation failed", body.Message)
	require.Equal(t, "required", body.Details["Text"])
	require.Nil(t, body.Data)
}

func TestFailureWithData(t *testing.T) {
	status, body := serve(t, func(c *fiber.Ctx) error {
		return utils.SendFailureWithData(c, fiber.StatusServiceUnavailable, "", map[string]string{"redis": "down"})
	})
	require.Equal(t, fiber.StatusServiceUnavailable, status)
	require.False(t, body.Success)
	require.Equal(t, "error", body.Message)
	require.Equal(t, "down", body.Data["redis"])
}
