package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sanvida/hms-api/internal/service"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
	"github.com/sanvida/hms-api/pkg/response"
)

// SystemHandler exposes operational endpoints for administrators.
type SystemHandler struct {
	cache *service.CacheService
}

// NewSystemHandler constructs SystemHandler.
func NewSystemHandler(cache *service.CacheService) *SystemHandler {
	return &SystemHandler{cache: cache}
}

// InvalidateCache godoc
// @Summary Invalidate cached entries by pattern
// @Tags System
// @Accept json
// @Produce json
// @Param payload body object true "Pattern payload"
// @Success 204
// @Router /system/cache/invalidate [post]
func (h *SystemHandler) InvalidateCache(c *gin.Context) {
	if h.cache == nil || !h.cache.Enabled() {
		response.Error(c, appErrors.Clone(appErrors.ErrConflict, "cache is not enabled"))
		return
	}

	var payload struct {
		Pattern string `json:"pattern" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "pattern is required"))
		return
	}

	if err := h.cache.Invalidate(c.Request.Context(), payload.Pattern); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
