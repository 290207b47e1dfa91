package client_test

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/trailmate-chat/internal/auth"
	"github.com/noah-isme/trailmate-chat/internal/chat"
	"github.com/noah-isme/trailmate-chat/internal/chat/codec"
	"github.com/noah-isme/trailmate-chat/internal/client"
	"github.com/noah-isme/trailmate-chat/internal/models"
	"github.com/noah-isme/trailmate-chat/internal/testserver"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1, 8, 6, 0, 0, 0}

type testServer struct {
	testserver.Server
}

func startServer(t *testing.T) testServer {
	return testServer{testserver.Start(t)}
}

func (s testServer) client(t *testing.T, userID, name string) *client.Client {
	t.Helper()
	c, err := client.New(client.Config{BaseURL: s.API, Tokens: testserver.Tokens(t, userID, name), Timeout: 5 * time.Second, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return c
}

func TestClientSessionLifecycle(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	ana := srv.client(t, "u-1", "Ana")
	budi := srv.client(t, "u-2", "Budi")

	_, err := ana.GetSession(ctx, "act-1")
	require.ErrorIs(t, err, chat.ErrSessionNotFound)

	session, created, err := ana.EnsureSession(ctx, "act-1", "Rinjani Summit")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "u-1", session.CreatorID)
	require.True(t, session.HasParticipant("u-1"))

	again, created, err := ana.EnsureSession(ctx, "act-1", "Other")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, session.ID, again.ID)

	fetched, err := budi.GetSession(ctx, "act-1")
	require.NoError(t, err)
	require.Equal(t, "Rinjani Summit", fetched.DisplayName)

	_, err = budi.ListMessages(ctx, session.ID)
	require.ErrorIs(t, err, chat.ErrForbidden)

	joined, err := budi.JoinSession(ctx, "act-1")
	require.NoError(t, err)
	require.True(t, joined.HasParticipant("u-2"))

	first, err := ana.CreateMessage(ctx, session.ID, chat.Draft{Text: "berangkat jam 5", Kind: chat.KindText})
	require.NoError(t, err)
	second, err := budi.CreateMessage(ctx, session.ID, chat.Draft{Text: "<b>siap</b>", Kind: chat.KindText})
	require.NoError(t, err)
	require.Equal(t, "siap", second.Body)
	require.Equal(t, "Budi", second.SenderName)

	messages, err := budi.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, first.ID, messages[0].ID)
	require.Equal(t, second.ID, messages[1].ID)

	_, err = ana.CreateMessage(ctx, session.ID, chat.Draft{Text: "   ", Kind: chat.KindText})
	require.ErrorIs(t, err, chat.ErrValidation)

	_, err = ana.UpdateMessage(ctx, first.ID, codec.Encode(codec.Event{Title: "x", Date: "2026-11-02"}))
	require.ErrorIs(t, err, chat.ErrNotEditable)
}

func TestClientDrivesSessionController(t *testing.T) {
	srv := startServer(t)
	ana := srv.client(t, "u-1", "Ana")
	ctx := context.Background()

	_, _, err := ana.EnsureSession(ctx, "act-2", "Camp")
	require.NoError(t, err)

	controller, err := chat.NewSessionController(chat.SessionConfig{
		Store:       ana,
		Identity:    chat.Identity{UserID: "u-1", Name: "Ana"},
		Attachments: chat.NewAttachments(ana, nil, zerolog.Nop()),
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)

	_, history, err := controller.LoadSession(ctx, "act-2")
	require.NoError(t, err)
	require.Empty(t, history)

	poll, err := controller.SendPayload(ctx, codec.Poll{Question: "Start?", Options: []string{"5am", "6am"}})
	require.NoError(t, err)
	decoded := codec.Decode(poll.Body)
	require.False(t, decoded.IsMalformed())
	require.Equal(t, codec.Poll{Question: "Start?", Options: []string{"5am", "6am"}}, decoded.Payload)

	event, err := controller.SendPayload(ctx, codec.Event{Title: "Camp", Date: "2026-11-02"})
	require.NoError(t, err)
	updated, err := controller.UpdateEventMessage(ctx, event.ID, codec.Event{Title: "Camp", Date: "2026-11-03", Time: "06:00"})
	require.NoError(t, err)
	require.Equal(t, event.ID, updated.ID)
	require.Contains(t, updated.Body, "2026-11-03")

	image, err := controller.SendAttachment(ctx, chat.File{Name: "summit.png", Data: pngHeader}, "")
	require.NoError(t, err)
	require.Equal(t, chat.KindImage, image.Kind)
	require.True(t, strings.HasPrefix(image.AttachmentURL, srv.Root+"/files/image/"))

	require.NoError(t, controller.Refresh(ctx))
	messages := controller.Messages()
	require.Len(t, messages, 3)
	require.Equal(t, updated.Body, messages[1].Body)
}

func TestClientUploadRejected(t *testing.T) {
	srv := startServer(t)
	ana := srv.client(t, "u-1", "Ana")

	_, err := ana.Upload(context.Background(), chat.File{Name: "run.exe", Data: []byte("MZ\x90\x00\x03\x00\x00\x00")}, chat.KindDocument)
	require.ErrorIs(t, err, chat.ErrValidation)
}

func TestClientDirectoryAndInvite(t *testing.T) {
	srv := startServer(t)
	lat, lon := -8.4095, 116.4573
	near, nearLon := -8.4, 116.54
	require.NoError(t, srv.DB.Create(&[]models.User{
		{ID: "u-1", Name: "Ana", Latitude: &lat, Longitude: &lon},
		{ID: "u-4", Name: "Anak Gunung", Latitude: &near, Longitude: &nearLon},
		{ID: "u-5", Name: "Budi"},
	}).Error)
	require.NoError(t, srv.DB.Create(&[]models.Friendship{
		{UserID: "u-1", FriendID: "u-5"},
		{UserID: "u-5", FriendID: "u-1"},
	}).Error)

	ana := srv.client(t, "u-1", "Ana")
	ctx := context.Background()

	found, err := ana.Search(ctx, "anak")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "u-4", found[0].ID)
	require.NotNil(t, found[0].DistanceKm)

	friends, err := ana.Friends(ctx)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	require.Equal(t, "u-5", friends[0].ID)

	require.NoError(t, ana.Invite(ctx, "act-3", []string{"u-4"}))
	require.ErrorIs(t, ana.Invite(ctx, "act-3", []string{"u-1"}), chat.ErrValidation)
}

func TestClientWatchDeliversMessages(t *testing.T) {
	srv := startServer(t)
	ana := srv.client(t, "u-1", "Ana")
	bg := context.Background()

	session, _, err := ana.EnsureSession(bg, "act-4", "Stream")
	require.NoError(t, err)

	var mu sync.Mutex
	var events []chat.StreamEvent
	ctx, cancel := context.WithCancel(bg)
	done := make(chan error, 1)
	go func() {
		done <- ana.Watch(ctx, session.ID, func(event chat.StreamEvent) {
			mu.Lock()
			events = append(events, event)
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		received := len(events)
		mu.Unlock()
		if received > 0 {
			return true
		}
		_, _ = ana.CreateMessage(bg, session.ID, chat.Draft{Text: "ping", Kind: chat.KindText})
		return false
	}, 3*time.Second, 100*time.Millisecond)

	mu.Lock()
	require.Equal(t, chat.StreamMessageCreated, events[0].Type)
	require.Equal(t, "ping", events[0].Message.Body)
	require.Equal(t, session.ID, events[0].Message.ChatID)
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestClientWatchForbidden(t *testing.T) {
	srv := startServer(t)
	ana := srv.client(t, "u-1", "Ana")
	eve := srv.client(t, "u-9", "Eve")

	session, _, err := ana.EnsureSession(context.Background(), "act-5", "Private")
	require.NoError(t, err)

	err = eve.Watch(context.Background(), session.ID, func(chat.StreamEvent) {})
	require.ErrorIs(t, err, chat.ErrForbidden)
}

func TestClientNetworkFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c, err := client.New(client.Config{BaseURL: "http://" + addr + "/api/v1", Tokens: auth.StaticToken("t"), Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.GetSession(context.Background(), "act-1")
	require.ErrorIs(t, err, chat.ErrNetwork)
}

func TestClientTokenSources(t *testing.T) {
	c, err := client.New(client.Config{BaseURL: "http://127.0.0.1:1/api/v1"})
	require.NoError(t, err)

	_, err = c.GetSession(context.Background(), "act-1")
	require.ErrorIs(t, err, auth.ErrNoToken)

	srv := startServer(t)
	anonymous, err := client.New(client.Config{BaseURL: srv.API})
	require.NoError(t, err)
	source, err := auth.NewJWTSource(testserver.Secret, "u-1", "Ana", time.Hour)
	require.NoError(t, err)
	token, err := source.Token(context.Background())
	require.NoError(t, err)

	_, created, err := anonymous.EnsureSession(auth.WithToken(context.Background(), token), "act-6", "")
	require.NoError(t, err)
	require.True(t, created)
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8080", "ftp://files.example.com"} {
		_, err := client.New(client.Config{BaseURL: raw})
		require.Error(t, err, raw)
	}
}
