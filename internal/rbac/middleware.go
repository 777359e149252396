package rbac

import (
	"net/http"

	"voice-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireBusiness enforces the multi-tenant invariant: business_id must exist in context.
// Every call, queue, campaign and session lookup downstream is scoped by it.
func RequireBusiness() gin.HandlerFunc {
	return func(c *gin.Context) {
		if bid, err := auth.BusinessID(c.Request.Context()); err != nil || bid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "business_id required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// super_admin always passes. Hidden roles pass only when listed, like any other
// role; they are simply never part of the default groups unless named.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if _, ok := allowedSet[role]; ok || IsSuperAdmin(role) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}
