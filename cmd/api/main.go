package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/trailmate-chat/internal/config"
	"github.com/noah-isme/trailmate-chat/internal/database"
	"github.com/noah-isme/trailmate-chat/internal/handler"
	"github.com/noah-isme/trailmate-chat/internal/middleware"
	"github.com/noah-isme/trailmate-chat/internal/models"
	"github.com/noah-isme/trailmate-chat/internal/repository"
	"github.com/noah-isme/trailmate-chat/internal/router"
	"github.com/noah-isme/trailmate-chat/internal/service"
	cloud "github.com/noah-isme/trailmate-chat/pkg/cloudinary"
	"github.com/noah-isme/trailmate-chat/pkg/events"
	"github.com/noah-isme/trailmate-chat/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	probes := map[string]handler.HealthProbe{
		"database": database.SQLProbe(db),
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		probes["redis"] = database.RedisProbe(redisClient)
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
		probes["nats"] = database.NATSProbe(natsConn)
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQP(ctx, events.Config{URL: cfg.AMQPURL, Exchange: cfg.AMQPExchange}, logger)
		if err != nil {
			log.Fatalf("failed to connect to amqp: %v", err)
		}
		publisher = amqpPublisher
	}
	defer publisher.Close()

	var fileStorage service.FileStorage
	filesDir := ""
	cloudCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	if cloudCfg.Configured() {
		uploader, err := cloud.New(cloudCfg, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		fileStorage = uploader
	} else {
		disk, err := storage.NewDisk(cfg.LocalUploadDir, cfg.PublicBaseURL+"/files", logger)
		if err != nil {
			log.Fatalf("failed to prepare upload dir: %v", err)
		}
		fileStorage = disk
		filesDir = disk.Root()
		logger.Warn().Str("dir", filesDir).Msg("cloudinary not configured, storing attachments on disk")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	chatRepo := repository.NewChatRepository(db)
	userRepo := repository.NewUserRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	uploadRepo := repository.NewUploadRepository(db)

	activityService := service.NewActivityService(activityRepo, validate, logger)
	chatService := service.NewChatService(chatRepo, service.ChatServiceConfig{
		Redis:       redisClient,
		NATS:        natsConn,
		ChannelBase: cfg.ChatChannelBase,
		Activity:    activityService,
	}, validate, logger)
	uploadService := service.NewUploadService(fileStorage, uploadRepo, cfg.UploadMaxSizeMB, logger)
	userService := service.NewUserService(userRepo, validate, logger)
	inviteService := service.NewInviteService(invitationRepo, chatRepo, activityService, publisher, validate, logger)

	chatService.Start(ctx)

	chatHandler := handler.NewChatHandler(chatService, uploadService, validate, logger).
		WithSendLimit(middleware.RateLimit("chat_send", cfg.SendRateLimit, cfg.SendRateWindow))

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigin: cfg.AllowOrigin})
	router.Register(app, cfg, router.Dependencies{
		ChatHandler:     chatHandler,
		UploadHandler:   handler.NewUploadHandler(uploadService, logger),
		UserHandler:     handler.NewUserHandler(userService, logger),
		InviteHandler:   handler.NewInviteHandler(inviteService, validate, logger),
		ActivityHandler: handler.NewActivityHandler(activityService, logger),
		HealthProbes:    probes,
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
		FilesDir:        filesDir,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(ctx, app)
}

func waitForShutdown(ctx context.Context, app *fiber.App) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
