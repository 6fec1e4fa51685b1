// Package admin provides owner-only endpoints for engine configuration
// and treasury management.
package admin

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Middleware rejects requests without the configured admin secret. The
// engine still enforces its own owner check on every mutation; this gate
// just keeps the surface off the public internet.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "admin_disabled",
				"message": "Admin surface is not configured",
			})
			c.Abort()
			return
		}
		provided := c.GetHeader("X-Admin-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Invalid admin secret",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
