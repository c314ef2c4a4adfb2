package handlers

import (
	"net/http"

	"erpsync/internal/apperr"
	"erpsync/internal/company"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CompanyHandler struct {
	editor    *company.IdentityEditor
	platforms Platforms
	logger    *zap.Logger
}

func NewCompanyHandler(editor *company.IdentityEditor, platforms Platforms, logger *zap.Logger) *CompanyHandler {
	return &CompanyHandler{editor: editor, platforms: platforms, logger: logger}
}

// UpdateIdentity sets the companyEmail and targetCompanyId metafields.
func (h *CompanyHandler) UpdateIdentity(c *gin.Context) {
	var req company.IdentityUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("", "request body must be a JSON object"))
		return
	}

	shop := c.Query("shop")
	if shop == "" {
		shop = c.GetHeader("X-Shopify-Shop-Domain")
	}
	platform, err := h.platforms.ForShop(c.Request.Context(), shop)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	updated, err := h.editor.Update(c.Request.Context(), platform, c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "company": updated})
}
