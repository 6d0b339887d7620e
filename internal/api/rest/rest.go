package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/feral-file/ff-mint-reconciler/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Intake endpoints require authentication when credentials are configured
		mints := v1.Group("/mints")
		if authCfg.Enabled() {
			mints.Use(middleware.Auth(authCfg))
		}
		mints.POST("", handler.CreateMint)
		mints.GET("/:contract_address/:reference_id", handler.GetMint)

		// Webhook deliveries are authenticated by their signature
		v1.POST("/webhooks/minting", handler.ReceiveWebhook)
	}
}
