package handlers

import (
	"net/http"

	"erpsync/internal/apperr"
	"erpsync/internal/services/shopify"
	"erpsync/internal/webhook"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	ingestor *webhook.Ingestor
	secret   string
	logger   *zap.Logger
}

// NewWebhookHandler verifies deliveries against secret; an empty secret
// accepts unsigned deliveries.
func NewWebhookHandler(ingestor *webhook.Ingestor, secret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{ingestor: ingestor, secret: secret, logger: logger}
}

// Receive handles Shopify webhook deliveries.
func (h *WebhookHandler) Receive(c *gin.Context) {
	topic := c.GetHeader("X-Shopify-Topic")
	shopDomain := c.GetHeader("X-Shopify-Shop-Domain")
	if topic == "" || shopDomain == "" {
		respondError(c, h.logger, apperr.Validation("", "missing X-Shopify-Topic or X-Shopify-Shop-Domain header"))
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		respondError(c, h.logger, apperr.Validation("", "failed to read payload"))
		return
	}

	if h.secret != "" && !shopify.ValidateWebhook(body, c.GetHeader("X-Shopify-Hmac-Sha256"), h.secret) {
		h.logger.Warn("webhook signature rejected", zap.String("topic", topic), zap.String("shop", shopDomain))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid webhook signature"})
		return
	}

	res, err := h.ingestor.Ingest(c.Request.Context(), webhook.Delivery{
		Topic:     topic,
		Shop:      shopDomain,
		WebhookID: c.GetHeader("X-Shopify-Webhook-Id"),
		Body:      body,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := gin.H{"success": true, "outcome": res.Outcome}
	switch res.Outcome {
	case webhook.Ingested:
		resp["message"] = "Webhook processed successfully"
		resp["outboundId"] = res.Message.ID
	case webhook.Duplicate:
		resp["message"] = "Webhook already processed"
	case webhook.Uninstalled:
		resp["message"] = "Shop sessions removed"
		resp["sessionsRemoved"] = res.SessionsRemoved
	default:
		resp["message"] = "Webhook received but not processed"
		resp["reason"] = res.Reason
	}
	c.JSON(http.StatusOK, resp)
}
