package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"caisse-system/internal/permissions"
	"caisse-system/internal/utils"
)

const callerKey = "caller"

func abortJSON(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{
		"success": false,
		"message": message,
	})
}

// JWTAuth verifies the bearer token and stores the caller on the context.
func JWTAuth(issuer *utils.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortJSON(c, http.StatusUnauthorized, "Missing bearer token")
			return
		}

		claims, err := issuer.ParseToken(strings.TrimSpace(token))
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(callerKey, claims.Caller())
		c.Next()
	}
}

// RequireCapability lets the request through when the caller holds any of caps.
func RequireCapability(caps ...permissions.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		for _, capability := range caps {
			if caller.Can(capability) {
				c.Next()
				return
			}
		}
		abortJSON(c, http.StatusForbidden, "Permission denied")
	}
}

func CallerFrom(c *gin.Context) (permissions.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return permissions.Caller{}, false
	}
	caller, ok := v.(permissions.Caller)
	return caller, ok
}
