package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/trailmate-chat/internal/dto"
	"github.com/noah-isme/trailmate-chat/internal/middleware"
	"github.com/noah-isme/trailmate-chat/internal/service"
	"github.com/noah-isme/trailmate-chat/internal/utils"
)

// ChatHandler wires chat session, message and websocket endpoints.
type ChatHandler struct {
	service   service.ChatService
	uploads   service.UploadService
	validator *validator.Validate
	logger    zerolog.Logger
	sendLimit fiber.Handler
}

// NewChatHandler creates a chat handler instance. uploads serves multipart
// message posts and may be nil.
func NewChatHandler(service service.ChatService, uploads service.UploadService, validator *validator.Validate, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service:   service,
		uploads:   uploads,
		validator: validator,
		logger:    logger.With().Str("component", "chat_handler").Logger(),
	}
}

// WithSendLimit guards message creation with limiter.
func (h *ChatHandler) WithSendLimit(limiter fiber.Handler) *ChatHandler {
	h.sendLimit = limiter
	return h
}

// Register binds chat routes under the authenticated API group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Get("/activities/:activityID/chat", h.getByActivity)
	router.Put("/activities/:activityID/chat", h.ensure)
	router.Post("/activities/:activityID/chat/participants", h.join)

	router.Get("/chats/:chatID/messages", h.listMessages)
	if h.sendLimit != nil {
		router.Post("/chats/:chatID/messages", h.sendLimit, h.createMessage)
	} else {
		router.Post("/chats/:chatID/messages", h.createMessage)
	}
	router.Patch("/messages/:messageID", h.updateMessage)

	router.Use("/chats/:chatID/ws", h.upgrade)
	router.Get("/chats/:chatID/ws", websocket.New(h.handleConnection))
}

func (h *ChatHandler) getByActivity(c *fiber.Ctx) error {
	session, err := h.service.GetByActivity(requestContext(c), c.Params("activityID"))
	if err != nil {
		return h.handleError(c, err, "failed to load chat")
	}
	return utils.SendSuccess(c, "chat retrieved", session)
}

func (h *ChatHandler) ensure(c *fiber.Ctx) error {
	var req dto.EnsureChatRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	session, created, err := h.service.Ensure(requestContext(c), actorFromContext(c), c.Params("activityID"), req)
	if err != nil {
		return h.handleError(c, err, "failed to create chat")
	}
	if created {
		return utils.SendCreated(c, "chat created", session)
	}
	return utils.SendSuccess(c, "chat exists", session)
}

func (h *ChatHandler) join(c *fiber.Ctx) error {
	session, err := h.service.Join(requestContext(c), actorFromContext(c), c.Params("activityID"))
	if err != nil {
		return h.handleError(c, err, "failed to join chat")
	}
	return utils.SendSuccess(c, "joined chat", session)
}

func (h *ChatHandler) listMessages(c *fiber.Ctx) error {
	chatID, err := parseUintParam(c, "chatID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid chat id")
	}

	messages, err := h.service.ListMessages(requestContext(c), actorFromContext(c), chatID)
	if err != nil {
		return h.handleError(c, err, "failed to load messages")
	}
	return utils.SendSuccess(c, "messages retrieved", messages)
}

func (h *ChatHandler) createMessage(c *fiber.Ctx) error {
	chatID, err := parseUintParam(c, "chatID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid chat id")
	}

	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	ctx := requestContext(c)
	actor := actorFromContext(c)

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		file, err := c.FormFile("file")
		if err == nil {
			if h.uploads == nil {
				return utils.SendError(c, fiber.StatusServiceUnavailable, "uploads unavailable")
			}
			if err := h.service.Authorize(ctx, actor, chatID); err != nil {
				return h.handleError(c, err, "failed to send message")
			}
			uploaded, err := h.uploads.Upload(ctx, file, actor.UserID)
			if err != nil {
				return handleUploadError(c, *requestLogger(h.logger, c), err)
			}
			req.AttachmentURL = uploaded.URL
			if req.Kind == "" {
				req.Kind = uploaded.Kind
			}
		}
	}

	message, err := h.service.CreateMessage(ctx, actor, chatID, req)
	if err != nil {
		return h.handleError(c, err, "failed to send message")
	}
	return utils.SendCreated(c, "message sent", message)
}

func (h *ChatHandler) updateMessage(c *fiber.Ctx) error {
	messageID, err := parseUintParam(c, "messageID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid message id")
	}

	var req dto.UpdateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	message, err := h.service.UpdateMessage(requestContext(c), actorFromContext(c), messageID, req)
	if err != nil {
		return h.handleError(c, err, "failed to update message")
	}
	return utils.SendSuccess(c, "message updated", message)
}

func (h *ChatHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	chatID, err := parseUintParam(c, "chatID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid chat id")
	}

	ctx := requestContext(c)
	if err := h.service.Authorize(ctx, actorFromContext(c), chatID); err != nil {
		return h.handleError(c, err, "failed to open stream")
	}

	c.Locals("chat_id", chatID)
	return c.Next()
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	userID, _ := conn.Locals(middleware.LocalUserID).(string)
	chatID, _ := conn.Locals("chat_id").(uint)
	correlation, _ := conn.Locals("correlation_id").(string)

	opts := service.ChatConnectionOptions{
		UserID:        userID,
		ChatID:        chatID,
		CorrelationID: correlation,
		Context:       middleware.ContextWithCorrelation(context.Background(), correlation),
	}

	h.logger.Info().Str("user_id", userID).Uint("chat_id", chatID).Msg("chat websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Str("user_id", userID).Uint("chat_id", chatID).Msg("chat websocket disconnected")
}

func (h *ChatHandler) handleError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case isValidationError(err):
		return utils.SendValidationError(c, validationDetails(err))
	case errors.Is(err, service.ErrChatNotFound), errors.Is(err, service.ErrChatMessageNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrChatNotAuthorised):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrChatNotEditable):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrChatEmptyMessage), errors.Is(err, service.ErrChatAttachmentRequired):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
