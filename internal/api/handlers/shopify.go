package handlers

import (
	"net/http"
	"time"

	"erpsync/internal/apperr"
	"erpsync/internal/models"
	"erpsync/internal/services/shopify"
	"erpsync/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ShopifyHandler struct {
	store        *store.Store
	logger       *zap.Logger
	oauthService *shopify.OAuthService
}

func NewShopifyHandler(s *store.Store, logger *zap.Logger, oauth *shopify.OAuthService) *ShopifyHandler {
	return &ShopifyHandler{
		store:        s,
		logger:       logger,
		oauthService: oauth,
	}
}

// Install initiates the Shopify OAuth flow
func (h *ShopifyHandler) Install(c *gin.Context) {
	var request struct {
		ShopDomain  string `json:"shop_domain" binding:"required"`
		RedirectURI string `json:"redirect_uri" binding:"required"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, h.logger, apperr.Validation("", "shop_domain and redirect_uri are required"))
		return
	}

	authURL, state, err := h.oauthService.GenerateAuthURL(request.ShopDomain, request.RedirectURI)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auth_url": authURL,
		"state":    state,
		"message":  "Redirect user to the auth_url to complete OAuth flow",
	})
}

// Callback exchanges the authorization code and stores the shop session.
func (h *ShopifyHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	shop := c.Query("shop")

	if code == "" || state == "" || shop == "" {
		respondError(c, h.logger, apperr.Validation("", "missing required parameters"))
		return
	}

	tokenResp, err := h.oauthService.ExchangeCodeForToken(c.Request.Context(), shop, code)
	if err != nil {
		h.logger.Error("Failed to exchange code for token", zap.String("shop", shop), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "Failed to exchange authorization code"})
		return
	}

	session := &models.ShopSession{
		Shop:        shopify.ShopDomain(shop),
		AccessToken: tokenResp.AccessToken,
		Scope:       tokenResp.Scope,
		InstalledAt: time.Now(),
	}
	if err := h.store.SaveSession(c.Request.Context(), session); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("shop installed", zap.String("shop", session.Shop), zap.String("scope", session.Scope))
	c.JSON(http.StatusOK, gin.H{
		"message": "Shopify store connected successfully",
		"shop":    session.Shop,
		"scope":   session.Scope,
	})
}
