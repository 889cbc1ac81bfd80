package main

import (
	"context"

	"go.uber.org/zap"

	mediaHandler "boingbox-backend/internal/handler/http/media"
	"boingbox-backend/internal/repository/cockroach"
	"boingbox-backend/internal/server"
	mediaService "boingbox-backend/internal/service/media"
	"boingbox-backend/pkg/config"
	"boingbox-backend/pkg/constants"
	"boingbox-backend/pkg/database"
	"boingbox-backend/pkg/jwt"
	"boingbox-backend/pkg/logger"
	"boingbox-backend/pkg/metrics"
)

const serviceName = "storage-service"

func main() {
	logger.InitDefault(serviceName)
	defer logger.Sync()

	cfg, err := config.Load(serviceName)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. CockroachDB for media records
	db, err := database.NewCockroachDB(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to CockroachDB", zap.Error(err))
	}
	defer db.Close()
	if err := cockroach.EnsureSchema(ctx, db.Pool); err != nil {
		logger.Fatal("Failed to prepare CockroachDB schema", zap.Error(err))
	}
	logger.Info("Connected to CockroachDB", zap.String("host", cfg.Database.Host))

	// 2. MinIO for the bytes
	store, err := mediaService.NewMinioStore(ctx, cfg.MinIO)
	if err != nil {
		logger.Fatal("Failed to connect to MinIO", zap.Error(err))
	}
	logger.Info("Connected to MinIO",
		zap.String("endpoint", cfg.MinIO.Endpoint),
		zap.String("bucket", cfg.MinIO.Bucket))

	// 3. Processing pipeline
	repo := cockroach.NewMediaRepository(db.Pool)
	processor := mediaService.NewProcessor(repo, mediaService.ProcessorConfig{
		Workers:   cfg.Media.Workers,
		QueueSize: cfg.Media.QueueSize,
		Interval:  cfg.Media.ProcessInterval,
	})
	tokens := jwt.NewUploadTokenManager(cfg.Media.UploadSecret, constants.UploadURLExpiry)
	mediaSvc := mediaService.NewService(repo, store, processor, tokens, cfg.Media.EnqueueTimeout)

	processor.Start(ctx)
	defer processor.Stop()

	// Recover blocks on a full queue, so it runs once the workers are up
	go func() {
		if _, err := mediaSvc.Recover(ctx); err != nil {
			logger.Error("Failed to recover unfinished media", zap.Error(err))
		}
	}()

	// 4. Routes
	router := server.NewRouter(cfg, metrics.NewMetrics(serviceName))
	mediaHandler.NewHandler(mediaSvc).RegisterRoutes(router.Group("/v1"))

	if err := server.Run(cfg, router); err != nil {
		logger.Error("Storage service stopped with error", zap.Error(err))
	}
}
