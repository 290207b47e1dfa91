package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope of every JSON reply. Data carries the result on
// success and may carry a partial result on failure; Details carries per
// field problems.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SendSuccess replies 200 with data.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendCreated replies 201 with the created resource.
func SendCreated(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusCreated, message, data)
}

// SendSuccessWithStatus replies with a success envelope and status, 200 when zero.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	return send(c, status, APIResponse{Success: true, Data: data, Message: orDefault(message, "success")})
}

// SendError replies with a bare failure envelope.
func SendError(c *fiber.Ctx, status int, message string) error {
	return SendErrorWithDetails(c, status, message, nil)
}

// SendErrorWithDetails replies with a failure envelope carrying details.
func SendErrorWithDetails(c *fiber.Ctx, status int, message string, details interface{}) error {
	return send(c, status, APIResponse{Message: orDefault(message, "error"), Details: details})
}

// SendValidationError replies 400 with field name to failed rule details.
func SendValidationError(c *fiber.Ctx, details map[string]string) error {
	return SendErrorWithDetails(c, fiber.StatusBadRequest, "validation failed", details)
}

// SendFailureWithData replies with a failure envelope that still carries data,
// for example the per component report of a failing health check.
func SendFailureWithData(c *fiber.Ctx, status int, message string, data interface{}) error {
	return send(c, status, APIResponse{Data: data, Message: orDefault(message, "error")})
}

func send(c *fiber.Ctx, status int, body APIResponse) error {
	return c.Status(status).JSON(body)
}

func orDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}
