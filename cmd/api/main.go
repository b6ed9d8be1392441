package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/internhub-api/internal/config"
	"github.com/noah-isme/internhub-api/internal/database"
	"github.com/noah-isme/internhub-api/internal/handler"
	"github.com/noah-isme/internhub-api/internal/middleware"
	"github.com/noah-isme/internhub-api/internal/repository"
	"github.com/noah-isme/internhub-api/internal/router"
	"github.com/noah-isme/internhub-api/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level).With().Str("service", cfg.AppName).Logger()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to connect to database")
	}

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	registry := service.NewConnectionRegistry(logger)
	dispatcher := service.NewDispatcher(registry, redisClient, natsConn, cfg.RealtimeChannel, logger)

	realtimeCtx, stopRealtime := context.WithCancel(context.Background())
	dispatcher.Start(realtimeCtx)
	logger.Info().Str("transport", dispatcher.Transport()).Msg("realtime fan-out ready")

	conversationService := service.NewConversationService(conversationRepo, messageRepo, userRepo, validate, logger)
	messageService := service.NewMessageService(conversationRepo, messageRepo, dispatcher, validate, logger)
	moderationService := service.NewModerationService(conversationRepo, messageRepo, userRepo, logger)
	realtimeService, err := service.NewRealtimeService(registry, cfg.RealtimeSendBuffer, cfg.RealtimePingInterval, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create realtime service")
	}

	var seedHandler *handler.SeedHandler
	if cfg.SeedEnabled {
		seedService := service.NewSeedService(userRepo, validate, cfg.SeedEnabled, cfg.SeedToken, logger)
		seedHandler = handler.NewSeedHandler(seedService, logger)
		logger.Warn().Msg("user seeding endpoint enabled")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		DB:                       db,
		Registry:                 registry,
		ConversationHandler:      handler.NewConversationHandler(conversationService, messageService, logger),
		AdminConversationHandler: handler.NewAdminConversationHandler(moderationService, logger),
		RealtimeHandler:          handler.NewRealtimeHandler(realtimeService, logger),
		SeedHandler:              seedHandler,
		JWTMiddleware:            middleware.JWTProtected(cfg.JWTSecret),
		OptionalJWTMiddleware:    middleware.JWTOptional(cfg.JWTSecret),
		MessageRateLimit:         middleware.RateLimit("messages", cfg.MessageRateLimit, cfg.MessageRateWindow),
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("http server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)

	stopRealtime()
	registry.CloseAll()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if natsConn != nil {
		natsConn.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info().Msg("server stopped")
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
