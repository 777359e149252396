package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// RequireAccessToken verifies an access token and injects identity into request context.
// It does not perform RBAC checks; those belong to internal/rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return verifyWith(m, func(c *gin.Context) (string, TokenType) {
		return bearer(c), TokenTypeAccess
	})
}

// RequireSocketToken guards websocket upgrades. Browsers cannot set headers
// there, so a socket token in ?token= is accepted; a bearer access token
// still works for non-browser clients. Access tokens in the query are not.
func RequireSocketToken(m *Manager) gin.HandlerFunc {
	return verifyWith(m, func(c *gin.Context) (string, TokenType) {
		if tok := bearer(c); tok != "" {
			return tok, TokenTypeAccess
		}
		return strings.TrimSpace(c.Query("token")), TokenTypeSocket
	})
}

func bearer(c *gin.Context) string {
	raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
	if !strings.HasPrefix(raw, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(raw, bearerPrefix)
}

func verifyWith(m *Manager, token func(*gin.Context) (string, TokenType)) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, typ := token(c)
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := m.Verify(tok, typ, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx := WithIdentity(c.Request.Context(), claims.UserID, claims.BusinessID, claims.Role)
		c.Request = c.Request.WithContext(ctx)

		// Also store on gin context for handler convenience.
		c.Set("user_id", claims.UserID)
		c.Set("business_id", claims.BusinessID)
		c.Set("role", claims.Role)

		c.Next()
	}
}
