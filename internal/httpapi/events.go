package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"voice-platform/internal/auth"
	"voice-platform/pkg/logger"
)

// Events upgrades to a websocket subscribed to the caller's business room.
func (h Handlers) Events(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	if h.Hub == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "events not configured"})
		return
	}
	if err := h.Hub.ServeWS(c.Writer, c.Request, bid); err != nil {
		logger.FromGin(c).Warn("websocket upgrade failed", "business_id", bid, "err", err)
	}
}

// SocketToken exchanges the caller's access token for a short-lived token the
// browser can pass as ?token= when opening /v1/ws.
func (h Handlers) SocketToken(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	who := auth.IdentityFrom(c.Request.Context())
	tok, err := h.Auth.IssueSocketToken(time.Now(), who.UserID, who.BusinessID, who.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok, "expires_in": int(auth.SocketTokenTTL.Seconds())})
}
