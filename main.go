package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-backend/internal/auth"
	"chat-backend/internal/chat"
	"chat-backend/internal/config"
	"chat-backend/internal/db"
	"chat-backend/internal/dispatch"
	"chat-backend/internal/groups"
	"chat-backend/internal/handlers"
	"chat-backend/internal/middleware"
	"chat-backend/internal/observability"
	"chat-backend/internal/presence"
	"chat-backend/internal/rabbitmq"
	"chat-backend/internal/repositories"
	"chat-backend/internal/telemetry"
	"chat-backend/internal/ws"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, "chat-backend", cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("audit publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	audit := telemetry.NewAuditEmitter(publisher, "audit.chat", "chat-backend", cfg.Environment)

	if cfg.AMQPURL != "" {
		eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Printf("event stream disabled: %v", err)
		} else {
			defer eventPublisher.Close()
			observability.SetPublisher(eventPublisher)
		}
	}

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	inviteRepo := repositories.NewInviteRepo(database)
	groupMessageRepo := repositories.NewGroupMessageRepo(database)

	store := presence.NewStore(rdb)
	cache := presence.NewCache(rdb, 5*time.Minute)
	hub := ws.NewHub()

	dispatcher := dispatch.New(store, store, store, messageRepo, hub)
	if err := dispatcher.Run(ctx); err != nil {
		log.Fatalf("failed to start dispatcher: %v", err)
	}

	chatService := chat.NewService(conversationRepo, messageRepo, dispatcher)
	groupService := groups.NewService(groupRepo, inviteRepo, groupMessageRepo, dispatcher, cache)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	gateway := ws.NewGateway(verifier, hub, store, store, chatService, groupService)

	chatHandler := handlers.NewChatHandler(chatService, audit)
	groupHandler := handlers.NewGroupHandler(groupService, audit)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware("chat-backend"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.POST("/conversations", authMiddleware, chatHandler.ResolveConversation)
	router.GET("/conversations", authMiddleware, chatHandler.ListConversations)
	router.GET("/conversations/:conversation_id/messages", authMiddleware, chatHandler.GetMessages)
	router.POST("/conversations/:conversation_id/read-all", authMiddleware, chatHandler.MarkAllRead)
	router.GET("/conversations/unread", authMiddleware, chatHandler.UnreadCounts)

	router.POST("/messages", authMiddleware, chatHandler.SendMessage)
	router.POST("/messages/delivered", authMiddleware, chatHandler.BulkDelivered)
	router.POST("/messages/:message_id/delivered", authMiddleware, chatHandler.MarkDelivered)
	router.POST("/messages/:message_id/read", authMiddleware, chatHandler.MarkRead)
	router.PUT("/messages/:message_id", authMiddleware, chatHandler.EditMessage)
	router.DELETE("/messages/:message_id", authMiddleware, chatHandler.DeleteMessage)

	router.POST("/groups", authMiddleware, groupHandler.CreateGroup)
	router.GET("/groups", authMiddleware, groupHandler.ListGroups)
	router.GET("/groups/:group_id", authMiddleware, groupHandler.GetGroup)
	router.PUT("/groups/:group_id", authMiddleware, groupHandler.RenameGroup)
	router.GET("/groups/:group_id/members", authMiddleware, groupHandler.ListMembers)
	router.POST("/groups/:group_id/members", authMiddleware, groupHandler.AddMember)
	router.DELETE("/groups/:group_id/members/:user_id", authMiddleware, groupHandler.RemoveMember)
	router.POST("/groups/:group_id/members/:user_id/promote", authMiddleware, groupHandler.PromoteMember)
	router.POST("/groups/:group_id/leave", authMiddleware, groupHandler.LeaveGroup)
	router.POST("/groups/:group_id/invites", authMiddleware, groupHandler.SendInvite)
	router.GET("/groups/:group_id/messages", authMiddleware, groupHandler.GetGroupMessages)
	router.POST("/groups/:group_id/messages", authMiddleware, groupHandler.SendGroupMessage)
	router.GET("/groups/:group_id/messages/tagged", authMiddleware, groupHandler.GetTaggedMessages)
	router.DELETE("/group-messages/:message_id", authMiddleware, groupHandler.DeleteGroupMessage)

	router.GET("/invites", authMiddleware, groupHandler.ListInvites)
	router.POST("/invites/:invite_id/respond", authMiddleware, groupHandler.RespondToInvite)

	router.GET("/ws", gateway.Handle)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
