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
	"github.com/rs/zerolog"

	"github.com/campushelp/helpdesk-api/internal/config"
	"github.com/campushelp/helpdesk-api/internal/database"
	"github.com/campushelp/helpdesk-api/internal/handler"
	"github.com/campushelp/helpdesk-api/internal/middleware"
	"github.com/campushelp/helpdesk-api/internal/models"
	"github.com/campushelp/helpdesk-api/internal/repository"
	"github.com/campushelp/helpdesk-api/internal/router"
	"github.com/campushelp/helpdesk-api/internal/service"
	cloud "github.com/campushelp/helpdesk-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Ticket{},
		&models.TicketSequence{},
		&models.ChatMessage{},
		&models.Notification{},
		&models.SystemSetting{},
		&models.UploadRecord{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	chatRepo := repository.NewChatRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	uploadRepo := repository.NewUploadRepository(db)

	settingService := service.NewSettingService(settingRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, redisClient, cfg.ChannelBase, natsConn, logger)
	ticketService := service.NewTicketService(db, ticketRepo, sequenceRepo, notificationService, validate, logger)
	assignmentService := service.NewAssignmentService(ticketRepo, userRepo, notificationService, logger)
	chatService := service.NewChatService(chatRepo, notificationService, redisClient, cfg.ChannelBase, natsConn, validate, logger)
	authService := service.NewAuthService(userRepo, settingService, redisClient, cfg.JWTSecret, validate, logger)
	userService := service.NewUserService(userRepo, validate, logger)
	uploadService := service.NewUploadService(uploader, uploadRepo, cfg.UploadMaxMB, logger)

	rootCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	notificationService.Start(rootCtx)
	chatService.Start(rootCtx)

	authHandler := handler.NewAuthHandler(authService, userService, logger)
	ticketHandler := handler.NewTicketHandler(ticketService, assignmentService, logger)
	chatHandler := handler.NewChatHandler(chatService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger, 30*time.Second)
	userHandler := handler.NewUserHandler(userService, logger)
	settingHandler := handler.NewSettingHandler(settingService, logger)
	uploadHandler := handler.NewUploadHandler(uploadService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:         authHandler,
		TicketHandler:       ticketHandler,
		ChatHandler:         chatHandler,
		NotificationHandler: notificationHandler,
		UserHandler:         userHandler,
		SettingHandler:      settingHandler,
		UploadHandler:       uploadHandler,

		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret),
		SessionMiddleware:     middleware.SessionGuard(authService, logger),
		MaintenanceMiddleware: middleware.Maintenance(settingService),
		AdminMiddleware:       middleware.RequireAdminAccount(userRepo),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
