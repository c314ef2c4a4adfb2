package handlers

import (
	"context"
	"net/http"

	"erpsync/internal/apperr"
	"erpsync/internal/company"
	"erpsync/internal/registration"
	"erpsync/internal/services/shopify"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Platform is the tenant-scoped surface the registration and identity
// endpoints call.
type Platform interface {
	registration.Platform
	company.IdentityPlatform
}

// Platforms resolves the platform client for a shop.
type Platforms interface {
	ForShop(ctx context.Context, shop string) (Platform, error)
}

// PlatformsFunc adapts a function to Platforms.
type PlatformsFunc func(ctx context.Context, shop string) (Platform, error)

func (f PlatformsFunc) ForShop(ctx context.Context, shop string) (Platform, error) {
	return f(ctx, shop)
}

// PlatformsFromFactory serves Shopify clients from f.
func PlatformsFromFactory(f *shopify.Factory) Platforms {
	return PlatformsFunc(func(ctx context.Context, shop string) (Platform, error) {
		c, err := f.ForShop(ctx, shop)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

type RegistrationHandler struct {
	service   *registration.Service
	platforms Platforms
	logger    *zap.Logger
}

func NewRegistrationHandler(service *registration.Service, platforms Platforms, logger *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{service: service, platforms: platforms, logger: logger}
}

// Register onboards a wholesale buyer from the storefront form.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var form registration.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		respondError(c, h.logger, apperr.Validation("", "request body must be a JSON object"))
		return
	}
	if err := registration.Validate(form); err != nil {
		respondError(c, h.logger, err)
		return
	}

	shop := form.Shop
	if shop == "" {
		shop = c.GetHeader("X-Shopify-Shop-Domain")
	}
	platform, err := h.platforms.ForShop(c.Request.Context(), shop)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.service.Register(c.Request.Context(), platform, form)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
