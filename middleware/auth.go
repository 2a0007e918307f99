package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chatty/tools/security"
)

// CtxUserIDKey is where Auth stores the authenticated user id; handlers
// read it back with UserID(c).
const CtxUserIDKey = "userId"

// Auth verifies the jwt cookie or an Authorization bearer token and
// puts the user id into the request context. Requests without a valid
// identity never reach the handler.
func Auth(opts security.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if cookie, err := c.Cookie("jwt"); err == nil {
			token = cookie
		}
		if token == "" {
			if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
				if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
					token = strings.TrimSpace(authz[len("bearer "):])
				}
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized, no token provided"})
			return
		}

		userID, err := security.Verify(opts, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized, invalid token"})
			return
		}

		c.Set(CtxUserIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id set by Auth.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}
