// Package handler is the Vercel serverless entry point. It serves the same
// router as cmd/api, built once per function instance.
package handler

import (
	"net/http"
	"sync"

	"erpsync/internal/api"
	"erpsync/internal/config"
	"erpsync/internal/database"
	"erpsync/internal/events"
	"erpsync/internal/idempotency"
	"erpsync/internal/logger"

	"go.uber.org/zap"
)

var (
	once    sync.Once
	router  http.Handler
	initErr error
)

func setup() {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}
	log := logger.New(cfg.LogLevel, "json")

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		initErr = err
		return
	}
	seen, err := idempotency.New(cfg.RedisURL)
	if err != nil {
		log.Error("Failed to connect to redis", zap.Error(err))
		initErr = err
		return
	}
	publisher := events.NewPublisher(cfg.Brokers(), log)

	router = api.New(cfg, log, db, api.NewDependencies(cfg, log, db, seen, publisher)).GetRouter()
}

// Handler serves one Vercel invocation.
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(setup)
	if initErr != nil {
		http.Error(w, `{"error":"service unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	router.ServeHTTP(w, r)
}
