package handlers

import (
	"neverlost/internal/middleware"
	"neverlost/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (h *Handler) SetupRouter(rateLimiter *services.IPRateLimiter) *gin.Engine {
	r := gin.Default()

	// Marker paths are matched on their escaped form and must never be
	// redirected.
	r.UseRawPath = true
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())

	// Operational routes reveal store state and rejection counts, so the
	// public listener only serves them to holders of the API key.
	if key := h.cfg.APIKey(); key != "" {
		ops := r.Group("/", middleware.BearerAuth(key))
		ops.GET("/health", h.Health)
		ops.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.GET("/marker/:file", h.ServeMarker)
	r.HEAD("/marker/:file", h.ServeMarker)

	api := r.Group("/api/v1")
	if rateLimiter != nil {
		api.Use(h.RateLimitMiddleware(rateLimiter))
	}
	api.Use(middleware.BearerAuth(h.cfg.APIKey()))
	{
		logs := api.Group("/logs", h.StoreRequired())
		logs.GET("/recent", h.RecentLogs)
		logs.GET("/count", h.CountLogs)

		api.GET("/markers/qr", h.MarkerQR)
	}

	// Anything else looks like an empty resource.
	r.NoRoute(h.Empty)

	return r
}

// SetupOpsRouter serves health and metrics without auth. It is meant for a
// listener on an internal interface (METRICS_ADDR).
func (h *Handler) SetupOpsRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
