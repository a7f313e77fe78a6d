package handlers

import (
	"net/http"

	"neverlost/internal/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) RateLimitMiddleware(limiter *services.IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(services.ClientIP(c.Request)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":      false,
				"error":   "too many requests",
				"message": "Rate limit exceeded. Please try again later.",
			})
			return
		}
		c.Next()
	}
}

// StoreRequired answers 503 when no access log store is bound.
func (h *Handler) StoreRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.logQuery.Enabled() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"ok":      false,
				"message": "DB binding not configured",
			})
			return
		}
		c.Next()
	}
}
