package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"erpsync/internal/api/handlers"
	"erpsync/internal/api/middleware"
	"erpsync/internal/company"
	"erpsync/internal/config"
	"erpsync/internal/database"
	"erpsync/internal/events"
	"erpsync/internal/idempotency"
	"erpsync/internal/registration"
	"erpsync/internal/services/shopify"
	"erpsync/internal/store"
	"erpsync/internal/syncer"
	"erpsync/internal/webhook"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the routes are served by.
type Dependencies struct {
	Store     *store.Store
	Syncer    handlers.Syncer
	Platforms handlers.Platforms
	Ingestor  *webhook.Ingestor
	Publisher events.Publisher
	OAuth     *shopify.OAuthService
}

// NewDependencies wires the production collaborators: per-shop Shopify
// clients, the dispatcher and the webhook ingestor.
func NewDependencies(cfg *config.Config, logger *zap.Logger, db *database.Database, seen idempotency.Store, publisher events.Publisher) Dependencies {
	s := store.New(db.DB)
	factory := shopify.NewFactory(cfg, s, logger)
	return Dependencies{
		Store: s,
		Syncer: syncer.NewDispatcher(s, syncer.FromFactory(factory), logger, syncer.Options{
			Actor:      cfg.SyncActor,
			RetryLimit: cfg.SyncRetryLimit,
			ClaimTTL:   cfg.SyncClaimTTL,
		}),
		Platforms: handlers.PlatformsFromFactory(factory),
		Ingestor:  webhook.NewIngestor(s, seen, publisher, cfg.KafkaOutboundTopic, logger),
		Publisher: publisher,
		OAuth:     shopify.NewOAuthService(cfg, logger),
	}
}

type Server struct {
	config *config.Config
	logger *zap.Logger
	db     *database.Database
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, logger *zap.Logger, db *database.Database, deps Dependencies) *Server {
	// Set Gin mode
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db.DB)
	inboundHandler := handlers.NewInboundHandler(deps.Store, cfg.DefaultShop, logger)
	syncHandler := handlers.NewSyncHandler(deps.Syncer, deps.Publisher, cfg.KafkaSyncTopic, logger)
	outboundHandler := handlers.NewOutboundHandler(deps.Store, logger)
	webhookHandler := handlers.NewWebhookHandler(deps.Ingestor, cfg.ShopifyClientSecret, logger)
	shopifyHandler := handlers.NewShopifyHandler(deps.Store, logger, deps.OAuth)
	registrationHandler := handlers.NewRegistrationHandler(registration.NewService(logger), deps.Platforms, logger)
	companyHandler := handlers.NewCompanyHandler(company.NewIdentityEditor(logger), deps.Platforms, logger)

	router.GET("/health", healthHandler.Check)

	// Routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Check)

		// Shopify-facing: signed webhooks, OAuth and the storefront form
		v1.POST("/webhooks", webhookHandler.Receive)
		shop := v1.Group("/shopify")
		{
			shop.POST("/install", shopifyHandler.Install)
			shop.GET("/callback", shopifyHandler.Callback)
		}
		v1.POST("/registrations", registrationHandler.Register)

		// ERP-facing
		erp := v1.Group("", middleware.Auth(cfg.JWTSecret))
		{
			inbound := erp.Group("/inbound-messages")
			{
				inbound.GET("", inboundHandler.List)
				inbound.POST("", inboundHandler.Create)
				inbound.GET("/:id", inboundHandler.Get)
				inbound.DELETE("/:id", inboundHandler.Delete)
				inbound.PUT("/:id/status", inboundHandler.UpdateStatus)
				inbound.POST("/:id/sync", syncHandler.SyncMessage)
			}
			erp.POST("/sync", syncHandler.SyncEntry)

			outbound := erp.Group("/outbound-messages")
			{
				outbound.GET("", outboundHandler.List)
				outbound.POST("/pull", outboundHandler.Pull)
				outbound.POST("/:id/ack", outboundHandler.Ack)
			}

			erp.PUT("/companies/:id/identity", companyHandler.UpdateIdentity)
		}
	}

	return &Server{
		config: cfg,
		logger: logger,
		db:     db,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// GetRouter returns the Gin router for Vercel
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
