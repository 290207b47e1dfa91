package handler_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/trailmate-chat/internal/dto"
	"github.com/noah-isme/trailmate-chat/internal/handler"
	"github.com/noah-isme/trailmate-chat/internal/service"
)

type chatServiceStub struct {
	session   dto.ChatSessionResponse
	created   bool
	messages  []dto.ChatMessageResponse
	err       error
	authErr   error
	lastActor service.ChatActor
	lastChat  uint
	lastReq   dto.CreateMessageRequest
	lastEdit  dto.UpdateMessageRequest
}

func (s *chatServiceStub) GetByActivity(_ context.Context, activityID string) (dto.ChatSessionResponse, error) {
	if s.err != nil {
		return dto.ChatSessionResponse{}, s.err
	}
	session := s.session
	session.ActivityID = activityID
	return session, nil
}

func (s *chatServiceStub) Ensure(_ context.Context, actor service.ChatActor, activityID string, req dto.EnsureChatRequest) (dto.ChatSessionResponse, bool, error) {
	s.lastActor = actor
	if s.err != nil {
		return dto.ChatSessionResponse{}, false, s.err
	}
	session := s.session
	session.ActivityID = activityID
	session.DisplayName = req.DisplayName
	return session, s.created, nil
}

func (s *chatServiceStub) Join(_ context.Context, actor service.ChatActor, _ string) (dto.ChatSessionResponse, error) {
	s.lastActor = actor
	if s.err != nil {
		return dto.ChatSessionResponse{}, s.err
	}
	session := s.session
	session.ParticipantIDs = append(session.ParticipantIDs, actor.UserID)
	return session, nil
}

func (s *chatServiceStub) Authorize(_ context.Context, actor service.ChatActor, chatID uint) error {
	s.lastActor = actor
	s.lastChat = chatID
	return s.authErr
}

func (s *chatServiceStub) ListMessages(_ context.Context, actor service.ChatActor, chatID uint) ([]dto.ChatMessageResponse, error) {
	s.lastActor = actor
	s.lastChat = chatID
	return s.messages, s.err
}

func (s *chatServiceStub) CreateMessage(_ context.Context, actor service.ChatActor, chatID uint, req dto.CreateMessageRequest) (dto.ChatMessageResponse, error) {
	s.lastActor = actor
	s.lastChat = chatID
	s.lastReq = req
	if s.err != nil {
		return dto.ChatMessageResponse{}, s.err
	}
	return dto.ChatMessageResponse{ID: "10", ChatID: "3", SenderID: actor.UserID, Kind: req.Kind, Body: req.Text, AttachmentURL: req.AttachmentURL}, nil
}

func (s *chatServiceStub) UpdateMessage(_ context.Context, actor service.ChatActor, _ uint, req dto.UpdateMessageRequest) (dto.ChatMessageResponse, error) {
	s.lastActor = actor
	s.lastEdit = req
	if s.err != nil {
		return dto.ChatMessageResponse{}, s.err
	}
	return dto.ChatMessageResponse{ID: "10", Body: req.Text}, nil
}

func (s *chatServiceStub) ServeConnection(*websocket.Conn, service.ChatConnectionOptions) {}

func (s *chatServiceStub) Start(context.Context) {}

func newChatApp(svc *chatServiceStub, uploads service.UploadService) *fiber.App {
	app, group := newApp("u-1", "Ana")
	handler.NewChatHandler(svc, uploads, validator.New(), zerolog.New(io.Discard)).Register(group)
	return app
}

func TestChatHandlerEnsureStatus(t *testing.T) {
	svc := &chatServiceStub{session: dto.ChatSessionResponse{ID: "3", CreatorID: "u-1"}, created: true}
	app := newChatApp(svc, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/activities/act-1/chat", strings.NewReader(`{"display_name":"Rinjani"}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var payload struct {
		Data dto.ChatSessionResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.Equal(t, "act-1", payload.Data.ActivityID)
	require.Equal(t, "Rinjani", payload.Data.DisplayName)
	require.Equal(t, "Ana", svc.lastActor.Name)

	svc.created = false
	resp, err = app.Test(httptest.NewRequest(http.MethodPut, "/api/activities/act-1/chat", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestChatHandlerErrorMapping(t *testing.T) {
	validationErr := validator.New().Struct(dto.UpdateMessageRequest{})
	require.Error(t, validationErr)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "not found", err: service.ErrChatNotFound, status: fiber.StatusNotFound},
		{name: "forbidden", err: service.ErrChatNotAuthorised, status: fiber.StatusForbidden},
		{name: "not editable", err: service.ErrChatNotEditable, status: fiber.StatusUnprocessableEntity},
		{name: "empty", err: service.ErrChatEmptyMessage, status: fiber.StatusBadRequest},
		{name: "validation", err: validationErr, status: fiber.StatusBadRequest},
		{name: "internal", err: io.ErrUnexpectedEOF, status: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newChatApp(&chatServiceStub{err: tc.err}, nil)
			req := httptest.NewRequest(http.MethodPatch, "/api/messages/10", strings.NewReader(`{"text":"x"}`))
			req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestChatHandlerRejectsBadIDs(t *testing.T) {
	app := newChatApp(&chatServiceStub{}, nil)

	for _, target := range []string{"/api/chats/abc/messages", "/api/chats/0/messages"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode, target)
	}
}

func TestChatHandlerCreateJSONMessage(t *testing.T) {
	svc := &chatServiceStub{}
	app := newChatApp(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chats/3/messages", strings.NewReader(`{"text":"[POLL]{\"question\":\"Start?\",\"options\":[\"5am\",\"6am\"]}","kind":"text"}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	require.Equal(t, uint(3), svc.lastChat)
	require.Equal(t, "u-1", svc.lastActor.UserID)
	require.True(t, strings.HasPrefix(svc.lastReq.Text, "[POLL]"))
}

func TestChatHandlerCreateMultipartUploadsFirst(t *testing.T) {
	svc := &chatServiceStub{}
	uploads := &mockUploadService{response: dto.UploadResponse{URL: "https://cdn.example.com/v.webm", Kind: "audio"}}
	app := newChatApp(svc, uploads)

	body, contentType := multipartBody(t, map[string]string{"text": ""}, "voice.webm", []byte("webm"))
	req := httptest.NewRequest(http.MethodPost, "/api/chats/3/messages", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	require.Equal(t, 1, uploads.calls)
	require.Equal(t, "u-1", uploads.lastUserID)
	require.Equal(t, "audio", svc.lastReq.Kind)
	require.Equal(t, "https://cdn.example.com/v.webm", svc.lastReq.AttachmentURL)
}

func TestChatHandlerMultipartNonParticipantSkipsUpload(t *testing.T) {
	svc := &chatServiceStub{authErr: service.ErrChatNotAuthorised}
	uploads := &mockUploadService{}
	app := newChatApp(svc, uploads)

	body, contentType := multipartBody(t, nil, "a.png", []byte("png"))
	req := httptest.NewRequest(http.MethodPost, "/api/chats/3/messages", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Zero(t, uploads.calls)
}

func TestChatHandlerMultipartUploadRejected(t *testing.T) {
	svc := &chatServiceStub{}
	uploads := &mockUploadService{err: service.ErrUploadTypeNotAllowed}
	app := newChatApp(svc, uploads)

	body, contentType := multipartBody(t, nil, "run.exe", []byte("MZ"))
	req := httptest.NewRequest(http.MethodPost, "/api/chats/3/messages", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
	require.Empty(t, svc.lastReq.AttachmentURL)
}

func TestChatHandlerWebsocketRequiresUpgrade(t *testing.T) {
	app := newChatApp(&chatServiceStub{}, nil)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/chats/3/ws", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestChatHandlerWebsocketRequiresParticipant(t *testing.T) {
	app := newChatApp(&chatServiceStub{authErr: service.ErrChatNotAuthorised}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/chats/3/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
