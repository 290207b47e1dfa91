package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/trailmate-chat/internal/dto"
	"github.com/noah-isme/trailmate-chat/internal/service"
	"github.com/noah-isme/trailmate-chat/internal/utils"
)

// ActivityHandler serves the membership log of an activity chat.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler instance.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register wires the activity log routes.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("/activities/:activityID/chat/activity", h.list)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	req := dto.ActivityLogListRequest{
		Action:   c.Query("action"),
		Page:     page,
		PageSize: pageSize,
	}

	result, err := h.service.List(requestContext(c), c.Params("activityID"), req)
	if err != nil {
		if isValidationError(err) {
			return utils.SendValidationError(c, validationDetails(err))
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list chat activity")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch activity")
	}

	return utils.SendSuccess(c, "chat activity retrieved", result)
}
