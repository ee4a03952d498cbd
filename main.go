package main

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/ratelimit"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "messaging-service").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}
	defer func() { _ = shutdownTracing(ctx) }()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	messageRepo := repositories.NewMessageRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)
	cleanupRepo := repositories.NewCleanupRepo(database)
	threadBuilder := repositories.NewThreadBuilder(messageRepo)

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	emitter := telemetry.NewEmitter(publisher, cfg.ServiceName, cfg.Environment)

	limiter := ratelimit.New(cfg.RateLimitWindow, cfg.RateLimitMax)

	messageHandler := handlers.NewMessageHandler(messageRepo, threadBuilder, emitter, cfg.RequestTimeout)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo, cfg.RequestTimeout)
	accountHandler := handlers.NewAccountHandler(cleanupRepo, emitter, logger, cfg.RequestTimeout)

	if cfg.AMQPURL != "" {
		consumer, err := rabbitmq.NewAccountEventConsumer(
			cfg.AMQPURL, cfg.AccountExchange, cfg.AccountQueue, cfg.AccountDeletedKey,
			cleanupRepo, cfg.RequestTimeout, logger,
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to set up account event consumer")
		}
		defer consumer.Close()
		if err := consumer.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start account event consumer")
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.RequestLogging(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	identity := middleware.Identity()
	rateLimit := middleware.RateLimit(limiter, cfg.RateLimitMax)

	router.POST("/messages", identity, rateLimit, messageHandler.SendMessage)
	router.PUT("/messages/:message_id", identity, messageHandler.EditMessage)
	router.GET("/messages/unread", identity, messageHandler.ListUnread)
	router.GET("/messages/:message_id/thread", identity, messageHandler.GetThread)
	router.GET("/messages/:message_id/history", identity, messageHandler.GetMessageHistory)
	router.POST("/messages/:message_id/read", identity, messageHandler.MarkMessageRead)
	router.GET("/conversations/:user_id", identity, messageHandler.GetConversation)

	router.GET("/notifications", identity, notificationHandler.ListNotifications)
	router.POST("/notifications/:notification_id/read", identity, notificationHandler.MarkNotificationRead)

	router.DELETE("/accounts/:account_id/data", accountHandler.OnAccountDeleted)

	handlers.RegisterDebugRoutes(router, emitter, cfg.DebugRoutes)

	logger.Info().Str("port", cfg.HTTPPort).Msg("starting http server")
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
