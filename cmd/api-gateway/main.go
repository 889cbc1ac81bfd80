package main

import (
	"go.uber.org/zap"

	"boingbox-backend/internal/gateway"
	"boingbox-backend/internal/middleware"
	"boingbox-backend/internal/server"
	"boingbox-backend/pkg/config"
	"boingbox-backend/pkg/database"
	"boingbox-backend/pkg/logger"
	"boingbox-backend/pkg/metrics"
)

const serviceName = "api-gateway"

func main() {
	logger.InitDefault(serviceName)
	defer logger.Sync()

	cfg, err := config.Load(serviceName)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Redis backs the rate limiter
	redisDB, err := database.NewRedisDB(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisDB.Close()

	router := server.NewRouter(cfg, metrics.NewMetrics(serviceName))

	v1 := router.Group("/v1")
	v1.Use(middleware.NewRateLimiter(redisDB.Client, cfg.Gateway.RateLimit, cfg.Gateway.RateWindow).Middleware())
	if err := gateway.RegisterRoutes(v1, cfg.Gateway); err != nil {
		logger.Fatal("Invalid upstream configuration", zap.Error(err))
	}

	logger.Info("Routing to upstream services",
		zap.String("chat", cfg.Gateway.ChatServiceURL),
		zap.String("video", cfg.Gateway.VideoServiceURL),
		zap.String("storage", cfg.Gateway.StorageServiceURL))

	if err := server.Run(cfg, router); err != nil {
		logger.Error("Gateway stopped with error", zap.Error(err))
	}
}
