package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"boingbox-backend/pkg/env"
)

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:8080",
}

// AllowedOrigins returns the default dev origins plus CORS_ALLOWED_ORIGINS.
func AllowedOrigins() map[string]bool {
	allowed := make(map[string]bool)
	for _, origin := range defaultOrigins {
		allowed[origin] = true
	}
	for _, origin := range env.GetStringSlice("CORS_ALLOWED_ORIGINS", nil) {
		allowed[strings.TrimSuffix(origin, "/")] = true
	}
	return allowed
}

func CORSMiddleware() gin.HandlerFunc {
	allowedOrigins := AllowedOrigins()

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if allowedOrigins[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		} else if origin != "" {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Upload-Token, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
