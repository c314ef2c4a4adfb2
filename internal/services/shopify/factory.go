package shopify

import (
	"context"
	"sync"

	"erpsync/internal/apperr"
	"erpsync/internal/config"
	"erpsync/internal/models"

	"go.uber.org/zap"
)

// SessionStore is the part of the store the factory reads credentials from.
type SessionStore interface {
	GetSession(ctx context.Context, shop string) (*models.ShopSession, error)
}

// Factory hands out one rate-limited client per shop and access token.
type Factory struct {
	sessions SessionStore
	config   *config.Config
	logger   *zap.Logger
	opts     []ClientOption

	mu      sync.Mutex
	clients map[string]*Client
}

func NewFactory(cfg *config.Config, sessions SessionStore, logger *zap.Logger, opts ...ClientOption) *Factory {
	return &Factory{
		sessions: sessions,
		config:   cfg,
		logger:   logger,
		opts:     append([]ClientOption{WithRateLimit(cfg.ShopifyRateLimit)}, opts...),
		clients:  make(map[string]*Client),
	}
}

// ForShop resolves the shop's installed session, falling back to the static
// token configured for DEFAULT_SHOP. An empty shop means DEFAULT_SHOP.
func (f *Factory) ForShop(ctx context.Context, shop string) (*Client, error) {
	if shop == "" {
		shop = f.config.DefaultShop
	}
	domain := ShopDomain(shop)
	if domain == "" {
		return nil, apperr.Validation("shop", "is required")
	}

	token := ""
	session, err := f.sessions.GetSession(ctx, domain)
	switch {
	case err == nil:
		token = session.AccessToken
	case apperr.Is[*apperr.NotFoundError](err):
		if domain == ShopDomain(f.config.DefaultShop) && f.config.ShopifyAccessToken != "" {
			token = f.config.ShopifyAccessToken
		} else {
			return nil, err
		}
	default:
		return nil, err
	}

	key := domain + "\x00" + token
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[key]; ok {
		return c, nil
	}
	c := NewClient(domain, token, f.config.ShopifyAPIVersion, f.logger, f.opts...)
	f.clients[key] = c
	return c, nil
}
