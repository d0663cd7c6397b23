package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/devedd/neurochat/internal/common"
	"github.com/gin-gonic/gin"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

// Health reports database and cache reachability.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"db": "ok", "cache": "ok"}
	healthy := true

	if sqlDB, err := h.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["db"] = "down"
		healthy = false
	}
	if err := h.Cache.Ping(ctx); err != nil {
		status["cache"] = "down"
		healthy = false
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": common.ErrCacheUnavailable.Code, "message": "degraded", "data": status})
		return
	}
	common.OK(c, status)
}
