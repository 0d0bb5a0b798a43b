package middleware

import (
	"net/http"
	"strings"

	"github.com/Reutertu3/lolisafe/utils"

	"github.com/gin-gonic/gin"
)

// AuthRequired rejects requests without a valid bearer token and records
// the authenticated user id on the context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := tokenUserID(c)
		if !ok {
			utils.Error(c, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}

// AuthOptional records the user id when a valid token is present and lets
// anonymous requests through untouched. An invalid token is still rejected
// so clients notice expired credentials instead of silently uploading
// anonymously.
func AuthOptional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		userID, ok := tokenUserID(c)
		if !ok {
			utils.Error(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}

func tokenUserID(c *gin.Context) (uint, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return 0, false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0, false
	}

	claims, err := utils.ParseToken(parts[1])
	if err != nil {
		return 0, false
	}
	return claims.UserID, true
}
