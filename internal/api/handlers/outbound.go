package handlers

import (
	"net/http"
	"strings"

	"erpsync/internal/apperr"
	"erpsync/internal/models"
	"erpsync/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OutboundHandler struct {
	store  *store.Store
	logger *zap.Logger
}

func NewOutboundHandler(s *store.Store, logger *zap.Logger) *OutboundHandler {
	return &OutboundHandler{store: s, logger: logger}
}

// List returns one page of outbound messages without changing them.
func (h *OutboundHandler) List(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	messages, page, err := h.store.ListOutbound(c.Request.Context(), f)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": messages, "pagination": page})
}

// Pull hands one page to the ERP and marks those rows transferred.
func (h *OutboundHandler) Pull(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	messages, page, err := h.store.PullOutbound(c.Request.Context(), f)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("outbound messages pulled", zap.Int("count", len(messages)), zap.Int64("total", page.Total))
	c.JSON(http.StatusOK, gin.H{"data": messages, "pagination": page})
}

// Ack records the ERP's result for one pulled message.
func (h *OutboundHandler) Ack(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req struct {
		ERPID  string `json:"erpId"`
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("status", "is required"))
		return
	}

	status := models.MessageStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	msg, err := h.store.AckOutbound(c.Request.Context(), id, strings.TrimSpace(req.ERPID), status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("outbound message acknowledged",
		zap.Uint("outbound_id", id),
		zap.String("status", string(msg.Status)),
		zap.String("count", msg.Count))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}
