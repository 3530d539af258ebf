package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"quix-messaging/internal/auth"
	"quix-messaging/internal/bridge"
	"quix-messaging/internal/config"
	"quix-messaging/internal/db"
	"quix-messaging/internal/handlers"
	"quix-messaging/internal/middleware"
	"quix-messaging/internal/observability"
	"quix-messaging/internal/presence"
	"quix-messaging/internal/rabbitmq"
	"quix-messaging/internal/repositories"
	"quix-messaging/internal/telemetry"
	"quix-messaging/internal/ws"
)

const serviceName = "quix-messaging"

func main() {
	cfg := config.Load()
	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown error: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode: %s", rabbitmq.PublisherMode(publisher))

	var fanout bridge.Bridge = bridge.NoopBridge{}
	if cfg.AMQPURL != "" {
		fanout = bridge.NewAMQPBridge(publisher)
	}

	var tracker presence.Tracker
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer client.Close()
		tracker = presence.NewRedisTracker(client, cfg.TypingWindow)
		log.Printf("typing tracker: redis (%s)", cfg.RedisAddr)
	} else {
		tracker = presence.NewMemoryTracker(cfg.TypingWindow)
		log.Printf("typing tracker: in-memory")
	}

	audit := telemetry.NewAuditEmitter(publisher, "observability.audit", serviceName, cfg.Environment)

	groupRepo := repositories.NewGroupRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)
	hub := ws.NewHub()
	gateway := ws.NewGateway(hub, verifier, groupRepo, messageRepo, tracker, fanout)

	groupHandler := handlers.NewGroupHandler(groupRepo, audit)
	messageHandler := handlers.NewMessageHandler(groupRepo, messageRepo, hub, fanout, audit)
	conversationHandler := handlers.NewConversationHandler(groupRepo, conversationRepo)
	presenceHandler := handlers.NewPresenceHandler(groupRepo, tracker)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.POST("/groups", authMiddleware, groupHandler.CreateGroup)
	router.GET("/groups", authMiddleware, groupHandler.ListGroups)
	router.GET("/groups/:group_id", authMiddleware, groupHandler.GetGroup)
	router.POST("/groups/:group_id/members", authMiddleware, groupHandler.AddMember)
	router.DELETE("/groups/:group_id/members/:user_id", authMiddleware, groupHandler.RemoveMember)

	router.GET("/groups/:group_id/messages", authMiddleware, messageHandler.GetMessages)
	router.POST("/groups/:group_id/messages", authMiddleware, messageHandler.PostMessage)
	router.GET("/groups/:group_id/messages/search", authMiddleware, messageHandler.SearchMessages)
	router.POST("/messages/:message_id/read", authMiddleware, messageHandler.MarkRead)
	router.POST("/groups/:group_id/read-all", authMiddleware, messageHandler.MarkAllRead)
	router.GET("/groups/:group_id/unread", authMiddleware, messageHandler.UnreadCount)
	router.GET("/unread", authMiddleware, messageHandler.TotalUnread)

	router.GET("/groups/:group_id/typing", authMiddleware, presenceHandler.TypingUsers)

	router.GET("/conversations", authMiddleware, conversationHandler.ListConversations)
	router.GET("/groups/:group_id/conversation", authMiddleware, conversationHandler.GetConversation)

	router.GET("/ws", gateway.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugEndpoints)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
