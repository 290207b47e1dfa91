package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/trailmate-chat/internal/dto"
	"github.com/noah-isme/trailmate-chat/internal/middleware"
	"github.com/noah-isme/trailmate-chat/internal/service"
	"github.com/noah-isme/trailmate-chat/internal/utils"
)

// UserHandler exposes the user directory used by the invite flow.
type UserHandler struct {
	service service.UserService
	logger  zerolog.Logger
}

// NewUserHandler constructs a user handler.
func NewUserHandler(service service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register wires directory routes.
func (h *UserHandler) Register(router fiber.Router) {
	router.Get("/users/search", h.search)
	router.Get("/users/me/friends", h.friends)
}

func (h *UserHandler) search(c *fiber.Ctx) error {
	var query dto.UserSearchQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	candidates, err := h.service.Search(requestContext(c), middleware.UserID(c), query)
	if err != nil {
		if isValidationError(err) {
			return utils.SendValidationError(c, validationDetails(err))
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("user search failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to search users")
	}
	return utils.SendSuccess(c, "users retrieved", candidates)
}

func (h *UserHandler) friends(c *fiber.Ctx) error {
	friends, err := h.service.Friends(requestContext(c), middleware.UserID(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("friends lookup failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load friends")
	}
	return utils.SendSuccess(c, "friends retrieved", friends)
}
