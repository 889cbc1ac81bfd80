package main

import (
	"go.uber.org/zap"

	messageHandler "boingbox-backend/internal/handler/http/message"
	storyHandler "boingbox-backend/internal/handler/http/story"
	wsHandler "boingbox-backend/internal/handler/ws"
	"boingbox-backend/internal/presence"
	"boingbox-backend/internal/repository/cassandra"
	"boingbox-backend/internal/repository/redis"
	"boingbox-backend/internal/server"
	messageService "boingbox-backend/internal/service/message"
	storyService "boingbox-backend/internal/service/story"
	"boingbox-backend/pkg/config"
	"boingbox-backend/pkg/database"
	"boingbox-backend/pkg/logger"
	"boingbox-backend/pkg/metrics"
)

const serviceName = "chat-service"

func main() {
	logger.InitDefault(serviceName)
	defer logger.Sync()

	cfg, err := config.Load(serviceName)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// 1. Cassandra for message history
	cassandraDB, err := database.NewCassandraDB(cfg.Cassandra)
	if err != nil {
		logger.Fatal("Failed to connect to Cassandra", zap.Error(err))
	}
	defer cassandraDB.Close()
	if err := cassandra.EnsureSchema(cassandraDB.Session); err != nil {
		logger.Fatal("Failed to prepare Cassandra schema", zap.Error(err))
	}
	logger.Info("Connected to Cassandra", zap.Strings("hosts", cfg.Cassandra.Hosts))

	// 2. Redis for stories
	redisDB, err := database.NewRedisDB(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisDB.Close()
	logger.Info("Connected to Redis", zap.String("host", cfg.Redis.Host))

	// 3. Services
	messageSvc := messageService.NewService(cassandra.NewMessageRepository(cassandraDB.Session))
	storySvc := storyService.NewService(redis.NewStoryRepository(redisDB.Client))

	// 4. Realtime relay
	registry := presence.NewRegistry()
	hub := wsHandler.NewRelayHub(registry, cfg.Server.MaxConnections)
	defer hub.Shutdown()

	// 5. Routes
	router := server.NewRouter(cfg, metrics.NewMetrics(serviceName))
	v1 := router.Group("/v1")
	v1.GET("/ws", hub.ServeWS)
	messageHandler.NewHandler(messageSvc).RegisterRoutes(v1)
	storyHandler.NewHandler(storySvc).RegisterRoutes(v1)

	if err := server.Run(cfg, router); err != nil {
		logger.Error("Chat service stopped with error", zap.Error(err))
	}
}
