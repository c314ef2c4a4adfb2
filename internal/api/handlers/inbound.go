package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"erpsync/internal/apperr"
	"erpsync/internal/models"
	"erpsync/internal/services/shopify"
	"erpsync/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type InboundHandler struct {
	store       *store.Store
	defaultShop string
	logger      *zap.Logger
}

func NewInboundHandler(s *store.Store, defaultShop string, logger *zap.Logger) *InboundHandler {
	return &InboundHandler{
		store:       s,
		defaultShop: defaultShop,
		logger:      logger,
	}
}

// targetKeys lists, per entity, the body fields that may carry the ERP id.
var targetKeys = map[models.EntityCode][]string{
	models.EntityProduct: {"sku", "targetId"},
	models.EntityCompany: {"externalId", "company_id", "companyId", "targetId"},
}

// Create stores an ERP change request and its payload.
func (h *InboundHandler) Create(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		respondError(c, h.logger, apperr.Validation("", "failed to read request body"))
		return
	}

	var body map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil || body == nil {
		respondError(c, h.logger, apperr.Validation("", "request body must be a JSON object"))
		return
	}

	entity := models.EntityCode(field(body, "entityCode"))
	if entity == "" {
		respondError(c, h.logger, apperr.Validation("entityCode", "is required"))
		return
	}
	keys, ok := targetKeys[entity]
	if !ok {
		keys = []string{"targetId"}
	}
	targetID := field(body, keys...)
	if targetID == "" {
		respondError(c, h.logger, apperr.Validation("targetId", "is required"))
		return
	}

	status := models.MessageStatus(strings.ToLower(field(body, "status")))
	switch status {
	case "", models.StatusPending, models.StatusError, models.StatusSuccess:
	default:
		respondError(c, h.logger, apperr.Validation("status", "must be pending, error or success"))
		return
	}

	shop := field(body, "shop")
	if shop == "" {
		shop = c.GetHeader("X-Shopify-Shop-Domain")
	}
	if shop == "" {
		shop = h.defaultShop
	}

	envelope, err := json.Marshal(map[string]interface{}{"body": body})
	if err != nil {
		respondError(c, h.logger, fmt.Errorf("encode payload: %w", err))
		return
	}

	msg := &models.InboundMessage{
		Shop:         shopify.ShopDomain(shop),
		EntityCode:   entity,
		TargetID:     targetID,
		ERPCode:      field(body, "erpCode"),
		VariantID:    models.StringPtr(field(body, "variantId")),
		VariantTitle: models.StringPtr(field(body, "variantTitle")),
		UpdateType:   models.StringPtr(field(body, "updateType")),
		Status:       status,
	}
	stored, err := h.store.CreateInbound(c.Request.Context(), msg, envelope)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("inbound message created",
		zap.Uint("message_id", msg.ID),
		zap.String("entity_code", string(msg.EntityCode)),
		zap.String("target_id", msg.TargetID),
		zap.String("shop", msg.Shop))
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"id":      msg.ID,
		"message": msg,
		"payload": stored,
	})
}

// List returns one page of inbound messages.
func (h *InboundHandler) List(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	messages, page, err := h.store.ListInbound(c.Request.Context(), f)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": messages, "pagination": page})
}

// Get returns a message with its payload.
func (h *InboundHandler) Get(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	msg, err := h.store.GetInbound(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	stored, err := h.store.GetPayload(c.Request.Context(), id)
	if err != nil && !apperr.Is[*apperr.NotFoundError](err) {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "payload": stored})
}

// Delete removes a message and its payload.
func (h *InboundHandler) Delete(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.store.DeleteInbound(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("inbound message deleted", zap.Uint("message_id", id))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Inbound message deleted"})
}

// UpdateStatus sets a message's status by hand, e.g. to close out a message
// whose entity code has no handler.
func (h *InboundHandler) UpdateStatus(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("status", "is required"))
		return
	}

	status := models.MessageStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	msg, err := h.store.SetInboundStatus(c.Request.Context(), id, status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("inbound message status set", zap.Uint("message_id", id), zap.String("status", string(status)))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

// field returns the first non-empty value among keys as a string. Numbers
// keep their literal form.
func field(body map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		var s string
		switch v := body[k].(type) {
		case string:
			s = strings.TrimSpace(v)
		case json.Number:
			s = v.String()
		case bool:
			s = fmt.Sprint(v)
		}
		if s != "" {
			return s
		}
	}
	return ""
}
