package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health reports the store as critical and the shared cache as advisory.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"status": "healthy", "store": "disabled", "cache": "memory"}
	code := http.StatusOK

	if h.db != nil {
		status["store"] = "up"
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			status["status"] = "unhealthy"
			status["store"] = "down"
			code = http.StatusServiceUnavailable
		}
	}

	if h.rdb != nil {
		status["cache"] = "redis"
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			status["cache"] = "redis-unreachable"
		}
	}

	c.JSON(code, status)
}
