package security

import (
	"net/http"
	"strings"

	toolsec "RentChat/tools/security"

	"github.com/gin-gonic/gin"
)

// CtxUserKey is where the verified subject lands in the gin context.
const CtxUserKey = "auth_user_id"

// BearerAuth verifies the Authorization header and injects the user id.
// The websocket route does its own verification before upgrade; this
// middleware covers the plain HTTP surface.
func BearerAuth(opts toolsec.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		userID, err := toolsec.Verify(opts, strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(CtxUserKey, userID)
		c.Next()
	}
}

// UserID pulls the verified user out of the request context.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserKey)
}
