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
	"github.com/rs/zerolog"

	"github.com/noah-isme/skillswap-api/internal/config"
	"github.com/noah-isme/skillswap-api/internal/database"
	"github.com/noah-isme/skillswap-api/internal/handler"
	"github.com/noah-isme/skillswap-api/internal/middleware"
	"github.com/noah-isme/skillswap-api/internal/repository"
	"github.com/noah-isme/skillswap-api/internal/router"
	"github.com/noah-isme/skillswap-api/internal/service"
	"github.com/noah-isme/skillswap-api/internal/utils"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "skillswap-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if !cfg.IsProduction() {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, message events use redis only")
		} else {
			defer natsConn.Drain()
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	profileRepo := repository.NewProfileRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, validate, logger)
	sessionService := service.NewSessionService(profileRepo, redisClient, cfg.ChannelBase, cfg.JWTSecret, cfg.JWTTTL, validate, logger)
	profileService := service.NewProfileService(profileRepo, validate, logger)
	conversationService := service.NewConversationService(conversationRepo, profileRepo, activityService, redisClient, cfg.ChannelBase, natsConn, validate, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conversationService.Start(ctx)

	conversationHandler := handler.NewConversationHandler(conversationService, handler.ConversationHandlerOptions{
		MessagePollInterval:      cfg.MessagePollInterval,
		ConversationPollInterval: cfg.ConversationPollInterval,
		SendBudget:               middleware.NewSendBudget(redisClient, cfg.ChannelBase, "messages", cfg.MessagesPerMinute, time.Minute),
	}, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fiberErr, ok := err.(*fiber.Error); ok {
				return utils.SendError(c, fiberErr.Code, fiberErr.Message)
			}
			logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled request error")
			return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
		},
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    !cfg.IsProduction(),
	})
	router.Register(app, cfg, router.Dependencies{
		SessionHandler:      handler.NewSessionHandler(sessionService, logger),
		ProfileHandler:      handler.NewProfileHandler(profileService, logger),
		ConversationHandler: conversationHandler,
		ActivityHandler:     handler.NewActivityHandler(activityService, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret, sessionService),
		SignInLimiter:       middleware.RateLimit("sign_in", cfg.SignInsPerMinute, time.Minute),
		HealthProbes: map[string]handler.Probe{
			"postgres": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Str("env", cfg.AppEnv).Msg("starting http server")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, cancel, logger)
}

func waitForShutdown(app *fiber.App, stopWorkers context.CancelFunc, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
