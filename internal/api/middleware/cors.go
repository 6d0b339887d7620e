package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupCORS configures CORS middleware with fully open settings
func SetupCORS() gin.HandlerFunc {
	config := cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", HEADER_REQUEST_ID},
		ExposeHeaders:    []string{"Content-Length", HEADER_REQUEST_ID},
		AllowCredentials: false,
		MaxAge:           time.Hour,
	}
	return cors.New(config)
}
