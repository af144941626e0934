// README: Bearer-token auth middleware and caller accessors.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tripnow/internal/infra"
)

const (
	RoleRider  = "rider"
	RoleDriver = "driver"

	ctxUID  = "caller_uid"
	ctxRole = "caller_role"
)

// Auth verifies the bearer token and stores the caller's uid and role on
// the context. A token without a role claim is treated as a rider.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil || token == nil || token.UID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxUID, token.UID)
		c.Set(ctxRole, normalizeRole(token.Role()))
		c.Next()
	}
}

// RequireRole rejects callers whose role differs from role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerRole(c) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden: " + role + " role required"})
			return
		}
		c.Next()
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}

func normalizeRole(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "driver", "captain":
		return RoleDriver
	default:
		return RoleRider
	}
}
