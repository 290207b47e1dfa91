package handler_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/trailmate-chat/internal/config"
	"github.com/noah-isme/trailmate-chat/internal/dto"
	"github.com/noah-isme/trailmate-chat/internal/handler"
	"github.com/noah-isme/trailmate-chat/internal/service"
)

type userServiceStub struct {
	lastCaller string
	lastQuery  dto.UserSearchQuery
	result     []dto.CandidateResponse
	err        error
}

func (s *userServiceStub) Search(_ context.Context, callerID string, query dto.UserSearchQuery) ([]dto.CandidateResponse, error) {
	s.lastCaller = callerID
	s.lastQuery = query
	return s.result, s.err
}

func (s *userServiceStub) Friends(_ context.Context, callerID string) ([]dto.CandidateResponse, error) {
	s.lastCaller = callerID
	return s.result, s.err
}

type inviteServiceStub struct {
	lastActivity string
	lastReq      dto.InviteRequest
	err          error
}

func (s *inviteServiceStub) Invite(_ context.Context, _ service.ChatActor, activityID, _ string, req dto.InviteRequest) (dto.InviteResponse, error) {
	s.lastActivity = activityID
	s.lastReq = req
	if s.err != nil {
		return dto.InviteResponse{}, s.err
	}
	return dto.InviteResponse{Invited: req.UserIDs}, nil
}

type activityServiceStub struct {
	lastActivity string
	lastReq      dto.ActivityLogListRequest
}

func (s *activityServiceStub) Record(context.Context, service.ActivityEntry) error { return nil }

func (s *activityServiceStub) List(_ context.Context, activityID string, req dto.ActivityLogListRequest) (dto.ActivityLogListResponse, error) {
	s.lastActivity = activityID
	s.lastReq = req
	return dto.ActivityLogListResponse{Items: []dto.ActivityLogResponse{{ID: 1, ActivityID: activityID, Action: "chat.created"}}}, nil
}

func TestUserHandlerSearch(t *testing.T) {
	svc := &userServiceStub{result: []dto.CandidateResponse{{ID: "u-4", Name: "Anak Gunung"}}}
	app, group := newApp("u-1", "Ana")
	handler.NewUserHandler(svc, zerolog.New(io.Discard)).Register(group)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/users/search?q=an&limit=5", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "u-1", svc.lastCaller)
	require.Equal(t, "an", svc.lastQuery.Query)
	require.Equal(t, 5, svc.lastQuery.Limit)

	var payload struct {
		Data []dto.CandidateResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.Len(t, payload.Data, 1)
}

func TestUserHandlerSearchValidation(t *testing.T) {
	validationErr := validator.New().Struct(dto.UserSearchQuery{})
	app, group := newApp("u-1", "Ana")
	handler.NewUserHandler(&userServiceStub{err: validationErr}, zerolog.New(io.Discard)).Register(group)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/users/search", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var payload envelope
	decodeResponse(t, resp, &payload)
	require.Equal(t, "required", payload.Details["Query"])
}

func TestUserHandlerFriends(t *testing.T) {
	svc := &userServiceStub{result: []dto.CandidateResponse{{ID: "u-2", Name: "Citra"}}}
	app, group := newApp("u-1", "Ana")
	handler.NewUserHandler(svc, zerolog.New(io.Discard)).Register(group)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/users/me/friends", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "u-1", svc.lastCaller)
}

func TestInviteHandler(t *testing.T) {
	svc := &inviteServiceStub{}
	app, group := newApp("u-1", "Ana")
	handler.NewInviteHandler(svc, validator.New(), zerolog.New(io.Discard)).Register(group)

	req := httptest.NewRequest(http.MethodPost, "/api/activities/act-1/invitations", strings.NewReader(`{"user_ids":["u-7"]}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "act-1", svc.lastActivity)
	require.Equal(t, []string{"u-7"}, svc.lastReq.UserIDs)

	svc.err = service.ErrInviteSelf
	req = httptest.NewRequest(http.MethodPost, "/api/activities/act-1/invitations", strings.NewReader(`{"user_ids":["u-1"]}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestActivityHandlerList(t *testing.T) {
	svc := &activityServiceStub{}
	app, group := newApp("u-1", "Ana")
	handler.NewActivityHandler(svc, zerolog.New(io.Discard)).Register(group)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/activities/act-1/chat/activity?action=chat.joined&page=2&page_size=5", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "act-1", svc.lastActivity)
	require.Equal(t, "chat.joined", svc.lastReq.Action)
	require.Equal(t, 2, svc.lastReq.Page)
	require.Equal(t, 5, svc.lastReq.PageSize)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/activities/act-1/chat/activity?page=x", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	cfg := config.Config{AppName: "trailmate-chat", AppEnv: "test"}

	app := fiber.New()
	app.Get("/health", handler.HealthCheck(cfg, map[string]handler.HealthProbe{
		"database": func(context.Context) error { return nil },
	}))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Data handler.HealthResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.Equal(t, "ok", payload.Data.Status)
	require.Equal(t, "ok", payload.Data.Components["database"])

	degraded := fiber.New()
	degraded.Get("/health", handler.HealthCheck(cfg, map[string]handler.HealthProbe{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}))
	resp, err = degraded.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	decodeResponse(t, resp, &payload)
	require.Equal(t, "degraded", payload.Data.Status)
	require.Equal(t, "connection refused", payload.Data.Components["redis"])
}
