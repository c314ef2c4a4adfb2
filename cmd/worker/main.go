package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"erpsync/internal/config"
	"erpsync/internal/database"
	"erpsync/internal/logger"
	"erpsync/internal/services/shopify"
	"erpsync/internal/store"
	"erpsync/internal/syncer"
	"erpsync/internal/worker"
	"erpsync/internal/worker/processors"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()

	if len(cfg.Brokers()) == 0 {
		logger.Fatal("KAFKA_BROKERS is required for the worker")
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	s := store.New(db.DB)
	dispatcher := syncer.NewDispatcher(s, syncer.FromFactory(shopify.NewFactory(cfg, s, logger)), logger, syncer.Options{
		Actor:      cfg.SyncActor,
		RetryLimit: cfg.SyncRetryLimit,
		ClaimTTL:   cfg.SyncClaimTTL,
	})

	// Initialize worker
	w := worker.New(worker.NewReader(cfg), processors.NewSyncProcessor(dispatcher, logger), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting worker...",
		zap.Strings("brokers", cfg.Brokers()),
		zap.String("topic", cfg.KafkaSyncTopic),
		zap.String("group", cfg.KafkaGroupID))
	if err := w.Run(ctx); err != nil {
		logger.Error("Worker stopped with error", zap.Error(err))
	}

	if err := w.Stop(); err != nil {
		logger.Error("Failed to close reader", zap.Error(err))
	}
}
