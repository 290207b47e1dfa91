package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/trailmate-chat/internal/chat/codec"
	"github.com/noah-isme/trailmate-chat/internal/dto"
	"github.com/noah-isme/trailmate-chat/internal/models"
	"github.com/noah-isme/trailmate-chat/internal/observability"
	"github.com/noah-isme/trailmate-chat/internal/repository"
)

const (
	chatRedisTTL       = 30 * time.Minute
	chatSendBufferSize = 32

	chatEventCreated = "message.created"
	chatEventUpdated = "message.updated"

	actionChatCreated = models.ActionChatCreated
	actionChatJoined  = models.ActionChatJoined
)

var (
	// ErrChatNotFound indicates no chat exists for the activity or id.
	ErrChatNotFound = errors.New("chat not found")
	// ErrChatMessageNotFound indicates the message id is unknown.
	ErrChatMessageNotFound = errors.New("message not found")
	// ErrChatNotAuthorised indicates the caller is not a participant or not the sender.
	ErrChatNotAuthorised = errors.New("sender not authorised for chat")
	// ErrChatNotEditable indicates the message or its replacement is not an event.
	ErrChatNotEditable = errors.New("only event messages can be edited")
	// ErrChatEmptyMessage indicates a text message with no content.
	ErrChatEmptyMessage = errors.New("message content empty after sanitization")
	// ErrChatAttachmentRequired indicates a media message without a URL.
	ErrChatAttachmentRequired = errors.New("attachment url required for media messages")
)

// ChatActor is the authenticated caller of a chat operation.
type ChatActor struct {
	UserID string
	Name   string
}

// ChatConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ChatConnectionOptions struct {
	UserID        string
	ChatID        uint
	CorrelationID string
	Context       context.Context
}

// ChatService manages chat sessions, messages and live delivery.
type ChatService interface {
	GetByActivity(ctx context.Context, activityID string) (dto.ChatSessionResponse, error)
	Ensure(ctx context.Context, actor ChatActor, activityID string, req dto.EnsureChatRequest) (dto.ChatSessionResponse, bool, error)
	Join(ctx context.Context, actor ChatActor, activityID string) (dto.ChatSessionResponse, error)
	Authorize(ctx context.Context, actor ChatActor, chatID uint) error
	ListMessages(ctx context.Context, actor ChatActor, chatID uint) ([]dto.ChatMessageResponse, error)
	CreateMessage(ctx context.Context, actor ChatActor, chatID uint, req dto.CreateMessageRequest) (dto.ChatMessageResponse, error)
	UpdateMessage(ctx context.Context, actor ChatActor, messageID uint, req dto.UpdateMessageRequest) (dto.ChatMessageResponse, error)
	ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions)
	Start(ctx context.Context)
}

// ChatServiceConfig groups the optional fanout backends of the chat service.
type ChatServiceConfig struct {
	Redis       *redis.Client
	NATS        *nats.Conn
	ChannelBase string
	Activity    ActivityRecorder
}

type chatService struct {
	repo        repository.ChatRepository
	activity    ActivityRecorder
	redis       *redis.Client
	redisStream string
	redisCache  string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	hub         *chatHub
	nodeID      string
}

type chatEvent struct {
	Source string              `json:"source"`
	Event  dto.ChatStreamEvent `json:"event"`
	SentAt time.Time           `json:"sent_at"`
}

// NewChatService creates the chat service.
func NewChatService(repo repository.ChatRepository, cfg ChatServiceConfig, validate *validator.Validate, logger zerolog.Logger) ChatService {
	streamChannel := ""
	cachePrefix := ""
	natsSubject := ""
	if cfg.ChannelBase != "" {
		streamChannel = cfg.ChannelBase + ":chat"
		cachePrefix = cfg.ChannelBase + ":chat:last"
		natsSubject = strings.ReplaceAll(cfg.ChannelBase, ":", ".") + ".chat"
	}

	return &chatService{
		repo:        repo,
		activity:    cfg.Activity,
		redis:       cfg.Redis,
		redisStream: streamChannel,
		redisCache:  cachePrefix,
		nats:        cfg.NATS,
		natsSubject: natsSubject,
		validator:   validate,
		logger:      logger.With().Str("component", "chat_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/trailmate-chat/internal/service/chat"),
		sanitizer:   bluemonday.StrictPolicy(),
		hub:         newChatHub(logger),
		nodeID:      uuid.NewString(),
	}
}

func (s *chatService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *chatService) GetByActivity(ctx context.Context, activityID string) (dto.ChatSessionResponse, error) {
	session, err := s.repo.FindSessionByActivity(ctx, strings.TrimSpace(activityID))
	if err != nil {
		return dto.ChatSessionResponse{}, chatRepoError(err, ErrChatNotFound)
	}
	return dto.NewChatSessionResponse(session), nil
}

func (s *chatService) Ensure(ctx context.Context, actor ChatActor, activityID string, req dto.EnsureChatRequest) (dto.ChatSessionResponse, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ChatSessionResponse{}, false, err
	}
	activityID = strings.TrimSpace(activityID)
	if activityID == "" || actor.UserID == "" {
		return dto.ChatSessionResponse{}, false, fmt.Errorf("activity and actor are required")
	}

	session := models.ChatSession{
		ActivityID:     activityID,
		CreatorID:      actor.UserID,
		DisplayName:    strings.TrimSpace(req.DisplayName),
		ParticipantIDs: []string{actor.UserID},
	}
	created, err := s.repo.EnsureSession(ctx, &session)
	if err != nil {
		return dto.ChatSessionResponse{}, false, err
	}

	if created {
		s.record(ctx, ActivityEntry{
			ActivityID: activityID,
			ActorID:    actor.UserID,
			Action:     actionChatCreated,
			Metadata:   map[string]interface{}{"chat_id": session.ID, "display_name": session.DisplayName},
		})
	}

	return dto.NewChatSessionResponse(session), created, nil
}

func (s *chatService) Join(ctx context.Context, actor ChatActor, activityID string) (dto.ChatSessionResponse, error) {
	activityID = strings.TrimSpace(activityID)
	before, err := s.repo.FindSessionByActivity(ctx, activityID)
	if err != nil {
		return dto.ChatSessionResponse{}, chatRepoError(err, ErrChatNotFound)
	}
	if before.HasParticipant(actor.UserID) {
		return dto.NewChatSessionResponse(before), nil
	}

	session, err := s.repo.AddParticipant(ctx, activityID, actor.UserID)
	if err != nil {
		return dto.ChatSessionResponse{}, chatRepoError(err, ErrChatNotFound)
	}

	s.record(ctx, ActivityEntry{
		ActivityID: activityID,
		ActorID:    actor.UserID,
		Action:     actionChatJoined,
		Metadata:   map[string]interface{}{"chat_id": session.ID},
	})

	return dto.NewChatSessionResponse(session), nil
}

func (s *chatService) Authorize(ctx context.Context, actor ChatActor, chatID uint) error {
	_, err := s.participantSession(ctx, actor, chatID)
	return err
}

func (s *chatService) ListMessages(ctx context.Context, actor ChatActor, chatID uint) ([]dto.ChatMessageResponse, error) {
	if _, err := s.participantSession(ctx, actor, chatID); err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return dto.NewChatMessageResponseSlice(messages), nil
}

func (s *chatService) CreateMessage(ctx context.Context, actor ChatActor, chatID uint, req dto.CreateMessageRequest) (dto.ChatMessageResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ChatMessageResponse{}, err
	}

	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	if kind == "" {
		kind = "text"
	}

	spanCtx, span := s.tracer.Start(ctx, "chat.create_message", trace.WithAttributes(
		attribute.Int("chat.id", int(chatID)),
		attribute.String("chat.sender_id", actor.UserID),
		attribute.String("chat.kind", kind),
	))
	defer span.End()

	if _, err := s.participantSession(spanCtx, actor, chatID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "not authorised")
		return dto.ChatMessageResponse{}, err
	}

	body := s.cleanBody(req.Text)
	attachment := strings.TrimSpace(req.AttachmentURL)
	if kind == "text" {
		if body == "" {
			return dto.ChatMessageResponse{}, ErrChatEmptyMessage
		}
		attachment = ""
	} else if attachment == "" {
		return dto.ChatMessageResponse{}, ErrChatAttachmentRequired
	}

	model := models.ChatMessage{
		ChatID:        chatID,
		SenderID:      actor.UserID,
		SenderName:    actor.Name,
		Kind:          kind,
		Body:          body,
		AttachmentURL: attachment,
	}
	if err := s.repo.CreateMessage(spanCtx, &model); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.ChatMessageResponse{}, err
	}

	response := dto.NewChatMessageResponse(model)
	s.deliver(spanCtx, dto.ChatStreamEvent{Type: chatEventCreated, Message: response})
	observability.ChatMessagesSent().WithLabelValues(kind).Inc()

	return response, nil
}

func (s *chatService) UpdateMessage(ctx context.Context, actor ChatActor, messageID uint, req dto.UpdateMessageRequest) (dto.ChatMessageResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		observability.ChatEdits().WithLabelValues("invalid").Inc()
		return dto.ChatMessageResponse{}, err
	}

	existing, err := s.repo.FindMessage(ctx, messageID)
	if err != nil {
		return dto.ChatMessageResponse{}, chatRepoError(err, ErrChatMessageNotFound)
	}
	if existing.SenderID != actor.UserID {
		observability.ChatEdits().WithLabelValues("forbidden").Inc()
		return dto.ChatMessageResponse{}, ErrChatNotAuthorised
	}
	if tag, ok := codec.HasTag(existing.Body); !ok || tag != codec.TagEvent {
		observability.ChatEdits().WithLabelValues("not_editable").Inc()
		return dto.ChatMessageResponse{}, ErrChatNotEditable
	}
	if result := codec.Decode(req.Text); result.Status != codec.StatusPayload || result.Tag != codec.TagEvent {
		observability.ChatEdits().WithLabelValues("invalid").Inc()
		return dto.ChatMessageResponse{}, ErrChatNotEditable
	}

	updated, err := s.repo.UpdateMessageBody(ctx, messageID, req.Text)
	if err != nil {
		return dto.ChatMessageResponse{}, chatRepoError(err, ErrChatMessageNotFound)
	}

	response := dto.NewChatMessageResponse(updated)
	s.deliver(ctx, dto.ChatStreamEvent{Type: chatEventUpdated, Message: response})
	observability.ChatEdits().WithLabelValues("updated").Inc()

	return response, nil
}

func (s *chatService) ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	client := newChatClient(conn, s, chatRoom(opts.ChatID), opts.UserID)
	s.hub.register(client)
	observability.ChatConnectionsTotal().Inc()

	if last := s.fetchLastMessage(baseCtx, client.room); last != nil {
		client.enqueue(dto.ChatStreamEvent{Type: chatEventCreated, Message: *last})
	}

	go client.writer()
	client.reader()
}

func (s *chatService) participantSession(ctx context.Context, actor ChatActor, chatID uint) (models.ChatSession, error) {
	session, err := s.repo.FindSessionByID(ctx, chatID)
	if err != nil {
		return models.ChatSession{}, chatRepoError(err, ErrChatNotFound)
	}
	if !session.HasParticipant(actor.UserID) {
		return models.ChatSession{}, ErrChatNotAuthorised
	}
	return session, nil
}

// cleanBody keeps well-formed payload bodies verbatim. Everything else,
// including malformed tagged bodies, goes through the sanitizer and stays
// escaped.
func (s *chatService) cleanBody(text string) string {
	if codec.Decode(text).Status == codec.StatusPayload {
		return text
	}
	return strings.TrimSpace(s.sanitizer.Sanitize(text))
}

func (s *chatService) record(ctx context.Context, entry ActivityEntry) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", entry.Action).Msg("failed to record chat activity")
	}
}

func (s *chatService) deliver(ctx context.Context, event dto.ChatStreamEvent) {
	if event.Type == chatEventCreated {
		s.cacheLastMessage(ctx, event.Message)
	}
	s.hub.broadcast(event.Message.ChatID, event)
	if err := s.publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish chat event")
	}
}

func (s *chatService) cacheLastMessage(ctx context.Context, message dto.ChatMessageResponse) {
	if s.redis == nil || s.redisCache == "" {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal chat message for cache")
		return
	}

	key := fmt.Sprintf("%s:%s", s.redisCache, message.ChatID)
	if err := s.redis.Set(ctx, key, payload, chatRedisTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache chat message")
	}
}

func (s *chatService) fetchLastMessage(ctx context.Context, room string) *dto.ChatMessageResponse {
	if s.redis == nil || s.redisCache == "" {
		return nil
	}

	result, err := s.redis.Get(ctx, fmt.Sprintf("%s:%s", s.redisCache, room)).Result()
	if err != nil {
		return nil
	}

	var message dto.ChatMessageResponse
	if err := json.Unmarshal([]byte(result), &message); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal cached chat message")
		return nil
	}
	return &message
}

func (s *chatService) publish(ctx context.Context, event dto.ChatStreamEvent) error {
	payload, err := json.Marshal(chatEvent{Source: s.nodeID, Event: event, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *chatService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("chat redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *chatService) consumeNATS(ctx context.Context) {
	// Each node needs every event for its own websocket clients, so no queue group.
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats chat subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain chat nats subscription")
		}
	}()
}

func (s *chatService) handleEvent(data []byte) {
	var event chatEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid chat event")
		return
	}
	if event.Source == s.nodeID {
		return
	}
	s.hub.broadcast(event.Event.Message.ChatID, event.Event)
}

func chatRoom(chatID uint) string {
	return strconv.FormatUint(uint64(chatID), 10)
}

func chatRepoError(err, notFound error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return err
}
