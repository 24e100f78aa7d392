package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/feral-file/ff-settlement/internal/api/middleware"
	"github.com/feral-file/ff-settlement/internal/metrics"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check and metrics endpoints (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Order status (public read access)
		v1.GET("/orders/:id", handler.GetOrder)

		// Payment verification (requires authentication)
		v1.POST("/orders/:id/verify", middleware.Auth(authCfg), handler.VerifyPayment)
	}
}
