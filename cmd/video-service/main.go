package main

import (
	"context"

	"go.uber.org/zap"

	callHandler "boingbox-backend/internal/handler/http/call"
	"boingbox-backend/internal/repository/cockroach"
	"boingbox-backend/internal/server"
	callService "boingbox-backend/internal/service/call"
	"boingbox-backend/pkg/config"
	"boingbox-backend/pkg/database"
	"boingbox-backend/pkg/logger"
	"boingbox-backend/pkg/metrics"
)

const serviceName = "video-service"

func main() {
	logger.InitDefault(serviceName)
	defer logger.Sync()

	cfg, err := config.Load(serviceName)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. CockroachDB for calls and the user/group directory
	db, err := database.NewCockroachDB(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to CockroachDB", zap.Error(err))
	}
	defer db.Close()
	if err := cockroach.EnsureSchema(ctx, db.Pool); err != nil {
		logger.Fatal("Failed to prepare CockroachDB schema", zap.Error(err))
	}
	logger.Info("Connected to CockroachDB", zap.String("host", cfg.Database.Host))

	// 2. Service and the missed-call sweeper
	callSvc := callService.NewService(
		cockroach.NewCallRepository(db.Pool),
		cockroach.NewUserRepository(db.Pool),
		cockroach.NewGroupRepository(db.Pool),
	)
	go callSvc.RunSweeper(ctx, cfg.Call.SweepInterval, cfg.Call.RingTimeout)

	// 3. Routes
	router := server.NewRouter(cfg, metrics.NewMetrics(serviceName))
	callHandler.NewHandler(callSvc).RegisterRoutes(router.Group("/v1"))

	if err := server.Run(cfg, router); err != nil {
		logger.Error("Video service stopped with error", zap.Error(err))
	}
}
