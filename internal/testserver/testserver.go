// Package testserver runs the complete chat store on a loopback listener for
// tests of its HTTP clients.
package testserver

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/trailmate-chat/internal/auth"
	"github.com/noah-isme/trailmate-chat/internal/config"
	"github.com/noah-isme/trailmate-chat/internal/handler"
	"github.com/noah-isme/trailmate-chat/internal/middleware"
	"github.com/noah-isme/trailmate-chat/internal/models"
	"github.com/noah-isme/trailmate-chat/internal/repository"
	"github.com/noah-isme/trailmate-chat/internal/router"
	"github.com/noah-isme/trailmate-chat/internal/service"
	"github.com/noah-isme/trailmate-chat/pkg/storage"
)

// Secret signs every token the server accepts.
const Secret = "testserver-secret"

// Server is a running chat store.
type Server struct {
	// Root is the scheme and host, for example http://127.0.0.1:41234.
	Root string
	// API is the versioned API base URL.
	API string
	DB  *gorm.DB
}

// Start serves the full handler stack over an in-memory database until the
// test ends.
func Start(t testing.TB) Server {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:ts_%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	root := "http://" + ln.Addr().String()

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())

	disk, err := storage.NewDisk(t.TempDir(), root+"/files", logger)
	require.NoError(t, err)

	chatRepo := repository.NewChatRepository(db)
	activity := service.NewActivityService(repository.NewActivityLogRepository(db), validate, logger)
	chatService := service.NewChatService(chatRepo, service.ChatServiceConfig{Activity: activity}, validate, logger)
	uploads := service.NewUploadService(disk, repository.NewUploadRepository(db), 5, logger)
	users := service.NewUserService(repository.NewUserRepository(db), validate, logger)
	invites := service.NewInviteService(repository.NewInvitationRepository(db), chatRepo, activity, nil, validate, logger)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	middleware.Register(app, middleware.Config{})
	router.Register(app, config.Config{AppName: "trailmate-test"}, router.Dependencies{
		ChatHandler:     handler.NewChatHandler(chatService, uploads, validate, logger),
		UploadHandler:   handler.NewUploadHandler(uploads, logger),
		UserHandler:     handler.NewUserHandler(users, logger),
		InviteHandler:   handler.NewInviteHandler(invites, validate, logger),
		ActivityHandler: handler.NewActivityHandler(activity, logger),
		JWTMiddleware:   middleware.JWTProtected(Secret),
		FilesDir:        disk.Root(),
	})

	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.ShutdownWithTimeout(2 * time.Second) })

	return Server{Root: root, API: root + "/api/v1", DB: db}
}

// Tokens returns a token source for userID signed with Secret.
func Tokens(t testing.TB, userID, name string) *auth.JWTSource {
	t.Helper()
	tokens, err := auth.NewJWTSource(Secret, userID, name, time.Hour)
	require.NoError(t, err)
	return tokens
}
