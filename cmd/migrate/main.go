package main

import (
	"log"
	"strings"

	"erpsync/internal/config"
	"erpsync/internal/database"
	"erpsync/internal/logger"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()

	// sqlite databases are created from the models when opened.
	if strings.HasPrefix(cfg.DatabaseURL, "sqlite://") {
		db, err := database.New(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Migration failed", zap.Error(err))
		}
		_ = db.Close()
	} else if err := database.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}
	logger.Info("Database schema is up to date")
}
