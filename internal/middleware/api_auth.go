package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BearerAuth requires "Authorization: Bearer <key>" with an exact match.
// An empty key disables the check and lets every caller through.
func BearerAuth(key string) gin.HandlerFunc {
	expected := "Bearer " + key
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		if c.GetHeader("Authorization") != expected {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"ok":      false,
				"message": "Unauthorized",
			})
			return
		}

		c.Next()
	}
}
