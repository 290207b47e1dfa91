package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/trailmate-chat/internal/dto"
	"github.com/noah-isme/trailmate-chat/internal/middleware"
	"github.com/noah-isme/trailmate-chat/internal/service"
	"github.com/noah-isme/trailmate-chat/internal/utils"
)

// InviteHandler records activity invitations.
type InviteHandler struct {
	service   service.InviteService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewInviteHandler constructs an invite handler.
func NewInviteHandler(service service.InviteService, validator *validator.Validate, logger zerolog.Logger) *InviteHandler {
	return &InviteHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "invite_handler").Logger(),
	}
}

// Register wires invitation routes.
func (h *InviteHandler) Register(router fiber.Router) {
	router.Post("/activities/:activityID/invitations", h.invite)
}

func (h *InviteHandler) invite(c *fiber.Ctx) error {
	var req dto.InviteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Invite(requestContext(c), actorFromContext(c), c.Params("activityID"), middleware.GetCorrelationID(c), req)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendValidationError(c, validationDetails(err))
		case errors.Is(err, service.ErrInviteSelf):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("invite failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to send invitations")
		}
	}
	return utils.SendCreated(c, "invitations sent", result)
}
