package chat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/trailmate-chat/internal/chat/codec"
	"github.com/noah-isme/trailmate-chat/internal/observability"
)

// SessionConfig wires a SessionController.
type SessionConfig struct {
	Store       Store
	Tokens      TokenProvider
	Identity    Identity
	Attachments *Attachments
	Notifier    Notifier
	Validator   *validator.Validate
	Logger      zerolog.Logger
}

// SessionController loads one chat and orchestrates sends against the store.
// Only store responses are appended to the message list.
type SessionController struct {
	store       Store
	tokens      TokenProvider
	identity    Identity
	attachments *Attachments
	notifier    Notifier
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer

	mu       sync.Mutex
	session  *Session
	messages []Message
	sending  bool
	votes    map[string]map[int]struct{}
	rsvps    map[string]string
}

// NewSessionController constructs a controller. Store is required.
func NewSessionController(cfg SessionConfig) (*SessionController, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("chat store must be provided")
	}

	validate := cfg.Validator
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}

	return &SessionController{
		store:       cfg.Store,
		tokens:      cfg.Tokens,
		identity:    cfg.Identity,
		attachments: cfg.Attachments,
		notifier:    notifierOrNop(cfg.Notifier),
		validator:   validate,
		logger:      cfg.Logger.With().Str("component", "chat_session").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/trailmate-chat/internal/chat/session"),
		votes:       make(map[string]map[int]struct{}),
		rsvps:       make(map[string]string),
	}, nil
}

// LoadSession fetches the chat for activityID and its history in creation
// order. Nothing is kept when either call fails.
func (c *SessionController) LoadSession(ctx context.Context, activityID string) (Session, []Message, error) {
	activityID = strings.TrimSpace(activityID)
	if activityID == "" {
		return Session{}, nil, fmt.Errorf("%w: activity id required", ErrValidation)
	}

	ctx, span := c.tracer.Start(ctx, "chat.load", trace.WithAttributes(attribute.String("chat.activity_id", activityID)))
	defer span.End()

	ctx, err := c.authorize(ctx)
	if err != nil {
		span.RecordError(err)
		return Session{}, nil, err
	}

	session, err := c.store.GetSession(ctx, activityID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session lookup failed")
		return Session{}, nil, err
	}

	messages, err := c.store.ListMessages(ctx, session.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "history failed")
		return Session{}, nil, err
	}

	c.mu.Lock()
	if c.session == nil || c.session.ID != session.ID {
		c.votes = make(map[string]map[int]struct{})
		c.rsvps = make(map[string]string)
	}
	stored := session
	c.session = &stored
	c.messages = append([]Message(nil), messages...)
	c.mu.Unlock()

	c.logger.Debug().Str("chat_id", session.ID).Int("messages", len(messages)).Msg("chat session loaded")
	span.SetStatus(codes.Ok, "loaded")

	return session, append([]Message(nil), messages...), nil
}

// Session returns the loaded session, if any.
func (c *SessionController) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Identity is the user the controller sends as.
func (c *SessionController) Identity() Identity {
	return c.identity
}

// Messages returns a copy of the ordered message list.
func (c *SessionController) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Participants returns the participant ids of the loaded session.
func (c *SessionController) Participants() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return append([]string(nil), c.session.ParticipantIDs...)
}

// Sending reports whether a send is in flight.
func (c *SessionController) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// SendText posts a plain text message.
func (c *SessionController) SendText(ctx context.Context, text string) (Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		observability.EngineSends().WithLabelValues("validation").Inc()
		return Message{}, fmt.Errorf("%w: message text is empty", ErrValidation)
	}
	return c.send(ctx, Draft{Text: trimmed, Kind: KindText})
}

// SendPayload encodes a structured payload and posts it as text.
func (c *SessionController) SendPayload(ctx context.Context, payload codec.Payload) (Message, error) {
	normalized, err := c.validatePayload(payload)
	if err != nil {
		observability.EngineSends().WithLabelValues("validation").Inc()
		return Message{}, err
	}
	return c.SendText(ctx, codec.Encode(normalized))
}

// SendAttachment uploads file through the attachment lifecycle and posts it.
// The in-flight guard covers both the upload and the message creation.
func (c *SessionController) SendAttachment(ctx context.Context, file File, kind Kind) (Message, error) {
	if c.attachments == nil {
		return Message{}, fmt.Errorf("%w: attachments are not configured", ErrValidation)
	}
	if len(file.Data) == 0 {
		observability.EngineSends().WithLabelValues("validation").Inc()
		return Message{}, fmt.Errorf("%w: attachment is empty", ErrValidation)
	}
	if kind != "" && !kind.IsMedia() {
		observability.EngineSends().WithLabelValues("validation").Inc()
		return Message{}, fmt.Errorf("%w: %q is not an attachment kind", ErrValidation, kind)
	}

	chatID, err := c.beginSend()
	if err != nil {
		return Message{}, err
	}
	defer c.endSend()

	ctx, span := c.tracer.Start(ctx, "chat.send_attachment", trace.WithAttributes(attribute.String("chat.id", chatID)))
	defer span.End()

	ctx, err = c.authorize(ctx)
	if err != nil {
		span.RecordError(err)
		return Message{}, err
	}

	attachment := c.attachments.Select(file, kind)
	span.SetAttributes(attribute.String("chat.kind", string(attachment.Kind)), attribute.Int64("attachment.size", attachment.Size))

	url, err := c.attachments.Upload(ctx, attachment.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		observability.EngineSends().WithLabelValues("upload_failed").Inc()
		return Message{}, err
	}

	draft := Draft{Kind: attachment.Kind, AttachmentURL: url}
	if attachment.Kind == KindDocument {
		draft.Text = attachment.Name
	}

	msg, err := c.store.CreateMessage(ctx, chatID, draft)
	if err != nil {
		c.attachments.MarkFailed(attachment.ID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "store rejected attachment")
		c.sendFailed(err)
		return Message{}, err
	}

	c.attachments.MarkSent(attachment.ID, msg)
	c.appendMessage(msg)
	observability.EngineSends().WithLabelValues("sent").Inc()
	span.SetStatus(codes.Ok, "sent")

	return msg, nil
}

// UpdateEventMessage replaces the event carried by one of the caller's own
// EVENT messages. The message keeps its position in the list.
func (c *SessionController) UpdateEventMessage(ctx context.Context, messageID string, event codec.Event) (Message, error) {
	normalized, err := c.validatePayload(event)
	if err != nil {
		return Message{}, err
	}

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return Message{}, ErrNoSession
	}
	idx := c.indexOf(messageID)
	if idx < 0 {
		c.mu.Unlock()
		return Message{}, fmt.Errorf("%w: unknown message %s", ErrNotEditable, messageID)
	}
	current := c.messages[idx]
	c.mu.Unlock()

	if current.SenderID != c.identity.UserID {
		return Message{}, fmt.Errorf("%w: only the sender can edit an event", ErrNotEditable)
	}
	if tag, ok := codec.HasTag(current.Body); !ok || tag != codec.TagEvent || current.Kind != KindText {
		return Message{}, fmt.Errorf("%w: not an event message", ErrNotEditable)
	}

	ctx, span := c.tracer.Start(ctx, "chat.update_event", trace.WithAttributes(attribute.String("chat.message_id", messageID)))
	defer span.End()

	ctx, err = c.authorize(ctx)
	if err != nil {
		span.RecordError(err)
		return Message{}, err
	}

	updated, err := c.store.UpdateMessage(ctx, messageID, codec.Encode(normalized))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		c.sendFailed(err)
		return Message{}, err
	}

	c.replaceMessage(updated)
	span.SetStatus(codes.Ok, "updated")
	return updated, nil
}

// Vote toggles optionIndex in the caller's selection for a loaded poll and
// returns the resulting selection in ascending order. Votes stay on this
// device.
func (c *SessionController) Vote(messageID string, optionIndex int) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(messageID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: unknown message %s", ErrValidation, messageID)
	}
	poll, ok := ContentOf(c.messages[idx]).(PollContent)
	if !ok {
		return nil, fmt.Errorf("%w: message %s is not a poll", ErrValidation, messageID)
	}
	if optionIndex < 0 || optionIndex >= len(poll.Options) {
		return nil, fmt.Errorf("%w: option %d is not between 0 and %d", ErrValidation, optionIndex, len(poll.Options)-1)
	}

	selected, ok := c.votes[messageID]
	if !ok {
		selected = make(map[int]struct{})
		c.votes[messageID] = selected
	}
	if _, exists := selected[optionIndex]; exists {
		delete(selected, optionIndex)
	} else {
		selected[optionIndex] = struct{}{}
	}

	return selection(selected), nil
}

// Votes returns the caller's current selection for a poll.
func (c *SessionController) Votes(messageID string) []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return selection(c.votes[messageID])
}

// RespondToEvent toggles the caller's RSVP label for an event. Choosing the
// current label again clears it. The resulting label is returned.
func (c *SessionController) RespondToEvent(messageID, label string) string {
	label = strings.TrimSpace(label)

	c.mu.Lock()
	defer c.mu.Unlock()

	if label == "" || c.rsvps[messageID] == label {
		delete(c.rsvps, messageID)
		return ""
	}
	c.rsvps[messageID] = label
	return label
}

// Response returns the caller's RSVP label for an event.
func (c *SessionController) Response(messageID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rsvps[messageID]
}

// Receive applies a pushed store change. Messages already in the list (the
// caller's own sends echoed back) are ignored.
func (c *SessionController) Receive(event StreamEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || event.Message.ChatID != c.session.ID {
		return
	}

	idx := c.indexOf(event.Message.ID)
	switch event.Type {
	case StreamMessageCreated:
		if idx >= 0 {
			return
		}
		c.messages = append(c.messages, event.Message)
	case StreamMessageUpdated:
		if idx >= 0 {
			c.messages[idx] = event.Message
		}
	}
}

// Refresh re-lists the history and replaces the local list wholesale. Use it
// after mutations whose response is not a fully hydrated message.
func (c *SessionController) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	chatID := c.session.ID
	c.mu.Unlock()

	ctx, err := c.authorize(ctx)
	if err != nil {
		return err
	}

	messages, err := c.store.ListMessages(ctx, chatID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.ID == chatID {
		c.messages = append([]Message(nil), messages...)
	}
	return nil
}

// Follow feeds live changes from stream into Receive until ctx is done.
func (c *SessionController) Follow(ctx context.Context, stream Stream) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	chatID := c.session.ID
	c.mu.Unlock()

	ctx, err := c.authorize(ctx)
	if err != nil {
		return err
	}

	return stream.Watch(ctx, chatID, c.Receive)
}

func (c *SessionController) send(ctx context.Context, draft Draft) (Message, error) {
	chatID, err := c.beginSend()
	if err != nil {
		return Message{}, err
	}
	defer c.endSend()

	ctx, span := c.tracer.Start(ctx, "chat.send", trace.WithAttributes(
		attribute.String("chat.id", chatID),
		attribute.String("chat.kind", string(draft.Kind)),
	))
	defer span.End()

	ctx, err = c.authorize(ctx)
	if err != nil {
		span.RecordError(err)
		return Message{}, err
	}

	msg, err := c.store.CreateMessage(ctx, chatID, draft)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store rejected message")
		c.sendFailed(err)
		return Message{}, err
	}

	c.appendMessage(msg)
	observability.EngineSends().WithLabelValues("sent").Inc()
	span.SetStatus(codes.Ok, "sent")
	return msg, nil
}

// beginSend claims the session-wide in-flight flag.
func (c *SessionController) beginSend() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return "", ErrNoSession
	}
	if c.sending {
		observability.EngineSends().WithLabelValues("duplicate").Inc()
		c.logger.Debug().Str("chat_id", c.session.ID).Msg("dropping send while another is in flight")
		return "", ErrDuplicateSend
	}
	c.sending = true
	return c.session.ID, nil
}

func (c *SessionController) endSend() {
	c.mu.Lock()
	c.sending = false
	c.mu.Unlock()
}

func (c *SessionController) sendFailed(err error) {
	observability.EngineSends().WithLabelValues("failed").Inc()
	c.logger.Warn().Err(err).Msg("chat send failed")
	c.notifier.Notify(Notice{Code: NoticeSendFailed, Message: "message could not be sent", Err: err})
}

func (c *SessionController) appendMessage(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || msg.ChatID != c.session.ID {
		return
	}
	// the stream may have delivered the echo before the create call returned
	if idx := c.indexOf(msg.ID); idx >= 0 {
		c.messages[idx] = msg
		return
	}
	c.messages = append(c.messages, msg)
}

func (c *SessionController) replaceMessage(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexOf(msg.ID); idx >= 0 {
		c.messages[idx] = msg
	}
}

func (c *SessionController) indexOf(messageID string) int {
	for i := range c.messages {
		if c.messages[i].ID == messageID {
			return i
		}
	}
	return -1
}

func (c *SessionController) authorize(ctx context.Context) (context.Context, error) {
	return withToken(ctx, c.tokens)
}

func (c *SessionController) validatePayload(payload codec.Payload) (codec.Payload, error) {
	var normalized codec.Payload
	switch p := payload.(type) {
	case codec.Poll:
		options := make([]string, 0, len(p.Options))
		for _, option := range p.Options {
			options = append(options, strings.TrimSpace(option))
		}
		normalized = codec.Poll{Question: strings.TrimSpace(p.Question), Options: options}
	case codec.Event:
		normalized = codec.Event{
			Title:       strings.TrimSpace(p.Title),
			Date:        strings.TrimSpace(p.Date),
			Time:        strings.TrimSpace(p.Time),
			Description: strings.TrimSpace(p.Description),
		}
	case codec.PaymentRequest:
		if math.IsInf(p.Amount, 0) || math.IsNaN(p.Amount) {
			return nil, fmt.Errorf("%w: amount must be a finite number", ErrValidation)
		}
		normalized = codec.PaymentRequest{Amount: p.Amount, Reason: strings.TrimSpace(p.Reason)}
	case codec.ContactCard:
		normalized = codec.ContactCard{ID: strings.TrimSpace(p.ID), Name: strings.TrimSpace(p.Name), AvatarURL: strings.TrimSpace(p.AvatarURL)}
	default:
		return nil, fmt.Errorf("%w: unsupported payload", ErrValidation)
	}

	if err := c.validator.Struct(normalized); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return nil, fmt.Errorf("%w: %s", ErrValidation, validationErrors.Error())
		}
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return normalized, nil
}

func selection(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
