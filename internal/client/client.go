// Package client talks to the chat store HTTP API on behalf of the chat
// engine. It implements the engine's Store, Joiner, FileStorage,
// UserDirectory, ActivityInviter and Stream ports.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/noah-isme/trailmate-chat/internal/auth"
	"github.com/noah-isme/trailmate-chat/internal/chat"
)

const correlationHeader = "X-Correlation-ID"

// Config wires a Client.
type Config struct {
	BaseURL string
	Tokens  chat.TokenProvider
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Client is a chat store API client. Tokens bound to the request context
// with auth.WithToken win over the configured provider.
type Client struct {
	baseURL string
	tokens  chat.TokenProvider
	timeout time.Duration
	dialer  *websocket.Dialer
	logger  zerolog.Logger
}

var (
	_ chat.Store           = (*Client)(nil)
	_ chat.Joiner          = (*Client)(nil)
	_ chat.FileStorage     = (*Client)(nil)
	_ chat.UserDirectory   = (*Client)(nil)
	_ chat.ActivityInviter = (*Client)(nil)
	_ chat.Stream          = (*Client)(nil)
)

// New constructs a client for the API rooted at cfg.BaseURL, for example
// "http://localhost:8080/api/v1".
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL: base,
		tokens:  cfg.Tokens,
		timeout: timeout,
		dialer:  &websocket.Dialer{HandshakeTimeout: timeout},
		logger:  cfg.Logger.With().Str("component", "chat_client").Logger(),
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type ensureRequest struct {
	DisplayName string `json:"display_name,omitempty"`
}

type messageRequest struct {
	Text          string `json:"text"`
	Kind          string `json:"kind,omitempty"`
	AttachmentURL string `json:"attachment_url,omitempty"`
}

type updateRequest struct {
	Text string `json:"text"`
}

type inviteRequest struct {
	UserIDs []string `json:"user_ids"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

// GetSession returns the chat bound to activityID.
func (c *Client) GetSession(ctx context.Context, activityID string) (chat.Session, error) {
	var session chat.Session
	err := c.do(ctx, request{method: fiber.MethodGet, path: "/activities/" + url.PathEscape(activityID) + "/chat"}, &session)
	return session, err
}

// EnsureSession creates the chat for activityID unless one exists. created
// reports whether this call made it.
func (c *Client) EnsureSession(ctx context.Context, activityID, displayName string) (chat.Session, bool, error) {
	var session chat.Session
	status, err := c.doStatus(ctx, request{
		method: fiber.MethodPut,
		path:   "/activities/" + url.PathEscape(activityID) + "/chat",
		body:   ensureRequest{DisplayName: strings.TrimSpace(displayName)},
	}, &session)
	return session, status == fiber.StatusCreated, err
}

// JoinSession adds the caller to the activity chat.
func (c *Client) JoinSession(ctx context.Context, activityID string) (chat.Session, error) {
	var session chat.Session
	err := c.do(ctx, request{method: fiber.MethodPost, path: "/activities/" + url.PathEscape(activityID) + "/chat/participants"}, &session)
	return session, err
}

// ListMessages returns the chat history in creation order.
func (c *Client) ListMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	messages := []chat.Message{}
	err := c.do(ctx, request{method: fiber.MethodGet, path: "/chats/" + url.PathEscape(chatID) + "/messages"}, &messages)
	return messages, err
}

// CreateMessage posts draft and returns the stored message.
func (c *Client) CreateMessage(ctx context.Context, chatID string, draft chat.Draft) (chat.Message, error) {
	var message chat.Message
	err := c.do(ctx, request{
		method: fiber.MethodPost,
		path:   "/chats/" + url.PathEscape(chatID) + "/messages",
		body:   messageRequest{Text: draft.Text, Kind: string(draft.Kind), AttachmentURL: draft.AttachmentURL},
	}, &message)
	return message, err
}

// UpdateMessage replaces the body of an event message.
func (c *Client) UpdateMessage(ctx context.Context, messageID, text string) (chat.Message, error) {
	var message chat.Message
	err := c.do(ctx, request{
		method: fiber.MethodPatch,
		path:   "/messages/" + url.PathEscape(messageID),
		body:   updateRequest{Text: text},
	}, &message)
	if errors.Is(err, errUnprocessable) {
		return chat.Message{}, fmt.Errorf("%w: %v", chat.ErrNotEditable, err)
	}
	return message, err
}

// Upload stores file and returns its public URL. The store sniffs the kind
// itself; kind is sent as a hint.
func (c *Client) Upload(ctx context.Context, file chat.File, kind chat.Kind) (string, error) {
	name := file.Name
	if name == "" {
		name = "attachment"
	}
	var uploaded uploadResponse
	err := c.do(ctx, request{
		method: fiber.MethodPost,
		path:   "/uploads",
		form:   map[string]string{"kind": string(kind)},
		file:   &fiber.FormFile{Fieldname: "file", Name: name, Content: file.Data},
	}, &uploaded)
	if err != nil {
		return "", err
	}
	if uploaded.URL == "" {
		return "", fmt.Errorf("%w: upload returned no url", chat.ErrRejected)
	}
	return uploaded.URL, nil
}

// Search looks users up by name.
func (c *Client) Search(ctx context.Context, query string) ([]chat.Candidate, error) {
	values := url.Values{}
	values.Set("q", query)
	candidates := []chat.Candidate{}
	err := c.do(ctx, request{method: fiber.MethodGet, path: "/users/search?" + values.Encode()}, &candidates)
	return candidates, err
}

// Friends lists the caller's friends.
func (c *Client) Friends(ctx context.Context) ([]chat.Candidate, error) {
	candidates := []chat.Candidate{}
	err := c.do(ctx, request{method: fiber.MethodGet, path: "/users/me/friends"}, &candidates)
	return candidates, err
}

// Invite invites userIDs to the activity.
func (c *Client) Invite(ctx context.Context, activityID string, userIDs []string) error {
	return c.do(ctx, request{
		method: fiber.MethodPost,
		path:   "/activities/" + url.PathEscape(activityID) + "/invitations",
		body:   inviteRequest{UserIDs: userIDs},
	}, nil)
}

type request struct {
	method string
	path   string
	body   interface{}
	form   map[string]string
	file   *fiber.FormFile
}

func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	_, err := c.doStatus(ctx, req, out)
	return err
}

func (c *Client) doStatus(ctx context.Context, req request, out interface{}) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	token, err := c.token(ctx)
	if err != nil {
		return 0, err
	}
	timeout, err := c.timeoutFor(ctx)
	if err != nil {
		return 0, err
	}

	agent := fiber.AcquireAgent()
	httpReq := agent.Request()
	httpReq.Header.SetMethod(req.method)
	httpReq.SetRequestURI(c.baseURL + req.path)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+token)
	agent.Set(correlationHeader, uuid.NewString())
	agent.Timeout(timeout)

	switch {
	case req.file != nil:
		args := fiber.AcquireArgs()
		for key, value := range req.form {
			if value != "" {
				args.Set(key, value)
			}
		}
		agent.FileData(req.file).MultipartForm(args)
		fiber.ReleaseArgs(args)
	case req.body != nil:
		agent.JSON(req.body)
	}

	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return 0, fmt.Errorf("%w: %v", chat.ErrNetwork, err)
	}

	status, payload, errs := agent.Bytes()
	if len(errs) > 0 {
		c.logger.Debug().Err(errs[0]).Str("method", req.method).Str("path", req.path).Msg("chat store unreachable")
		return 0, fmt.Errorf("%w: %v", chat.ErrNetwork, errs[0])
	}

	var env envelope
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &env); err != nil {
			return status, fmt.Errorf("%w: unreadable response (status %d)", chat.ErrRejected, status)
		}
	}

	if status < 200 || status > 299 {
		return status, statusError(status, env.Message)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return status, fmt.Errorf("%w: decode response: %v", chat.ErrRejected, err)
		}
	}
	return status, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if token, ok := auth.TokenFromContext(ctx); ok {
		return token, nil
	}
	if c.tokens == nil {
		return "", auth.ErrNoToken
	}
	return c.tokens.Token(ctx)
}

func (c *Client) timeoutFor(ctx context.Context) (time.Duration, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return c.timeout, nil
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, context.DeadlineExceeded
	}
	if remaining < c.timeout {
		return remaining, nil
	}
	return c.timeout, nil
}

var errUnprocessable = errors.New("unprocessable")

// statusError maps a non-2xx store answer onto the engine error taxonomy.
func statusError(status int, message string) error {
	if message == "" {
		message = "status " + strconv.Itoa(status)
	}
	switch status {
	case fiber.StatusNotFound:
		return fmt.Errorf("%w: %s", chat.ErrSessionNotFound, message)
	case fiber.StatusUnauthorized, fiber.StatusForbidden:
		return fmt.Errorf("%w: %s", chat.ErrForbidden, message)
	case fiber.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %w: %s", chat.ErrValidation, errUnprocessable, message)
	case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge, fiber.StatusUnsupportedMediaType:
		return fmt.Errorf("%w: %s", chat.ErrValidation, message)
	default:
		return fmt.Errorf("%w: %s", chat.ErrRejected, message)
	}
}
