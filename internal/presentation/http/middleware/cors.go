package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware provides the CORS configuration for the storyboard API.
// The surface is unauthenticated, so origins stay permissive for local
// tooling while credentials remain disabled.
func CORSMiddleware() gin.HandlerFunc {
	config := cors.Config{
		AllowAllOrigins: true,
		AllowMethods: []string{
			"GET", "POST", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			"X-Requested-With", "X-Request-ID",
			"Cache-Control",
		},
		ExposeHeaders: []string{
			"Content-Type", "X-Request-ID",
		},
	}

	return cors.New(config)
}
