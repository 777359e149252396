package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"voice-platform/internal/audit"
	"voice-platform/internal/auth"
	"voice-platform/internal/dialer"
	"voice-platform/internal/events"
	"voice-platform/internal/gateway"
	"voice-platform/internal/routing"
	"voice-platform/pkg/logger"
)

var errNoHealthyProvider = errors.New("no healthy provider")

// RulesStore reads and replaces a business's routing rules.
type RulesStore interface {
	RoutingRules(ctx context.Context, businessID string) ([]routing.RoutingRule, error)
	PutRules(ctx context.Context, businessID string, rules []routing.RoutingRule) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth    *auth.Manager
	Gateway *gateway.Gateway
	Router  *routing.Router
	Dialer  *dialer.Dialer
	Hub     *events.Hub
	Audit   *audit.Service

	Rules RulesStore
	DNC   dialer.DNCChecker

	// Invalidate drops cached configuration after a write. Optional.
	Invalidate func(businessID string)
}

// businessID reads the caller's business from the request context.
// RequireBusiness guarantees it on /v1; the check here keeps handlers safe
// if mounted elsewhere.
func businessID(c *gin.Context) (string, bool) {
	id, err := auth.BusinessID(c.Request.Context())
	if err != nil || id == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "business_id required"})
		return "", false
	}
	return id, true
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dialer.ErrRateLimited), errors.Is(err, dialer.ErrConcurrencyLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, dialer.ErrDoNotCall):
		return http.StatusForbidden
	case errors.Is(err, dialer.ErrOutsideCallingHours):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dialer.ErrInvalidRequest), errors.Is(err, routing.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, dialer.ErrCampaignNotFound), errors.Is(err, dialer.ErrSessionNotFound),
		errors.Is(err, dialer.ErrCallbackNotFound), errors.Is(err, routing.ErrCallNotFound),
		errors.Is(err, gateway.ErrCallNotFound):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrProviderNotConfigured):
		return http.StatusBadRequest
	case errors.Is(err, dialer.ErrAlreadyRunning), errors.Is(err, dialer.ErrNotPaused),
		errors.Is(err, dialer.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, dialer.ErrCallFailed), errors.Is(err, gateway.ErrNoProviders):
		return http.StatusBadGateway
	case errors.Is(err, errNoHealthyProvider):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(status, gin.H{"success": false, "error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": err.Error()})
}

// --- Auth ---

type loginRequest struct {
	UserID     string `json:"user_id"`
	BusinessID string `json:"business_id"`
	Role       string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: credentials are not checked here; identity comes from the upstream identity provider.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.UserID == "" || req.BusinessID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, business_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.BusinessID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

func (h Handlers) Me(c *gin.Context) {
	c.JSON(http.StatusOK, auth.IdentityFrom(c.Request.Context()))
}

// auditAdmin records a carrier-level change made by the caller. Failures are logged only.
func (h Handlers) auditAdmin(c *gin.Context, message, subject string) {
	if h.Audit == nil {
		return
	}
	ctx := c.Request.Context()
	who := auth.IdentityFrom(ctx)
	meta, _ := json.Marshal(map[string]string{"subject": subject, "route": c.FullPath()})
	if err := h.Audit.LogAdminAction(ctx, who.BusinessID, who.UserID, who.Role, c.ClientIP(), message+": "+subject, string(meta)); err != nil {
		logger.FromGin(c).Warn("admin audit failed", "action", message, "err", err)
	}
}

// auditCampaign records who changed a campaign. Failures are logged only.
func (h Handlers) auditCampaign(c *gin.Context, businessID, campaignID, action string) {
	if h.Audit == nil {
		return
	}
	ctx := c.Request.Context()
	who := auth.IdentityFrom(ctx)
	if err := h.Audit.LogCampaignAction(ctx, businessID, who.UserID, who.Role, c.ClientIP(), campaignID, action); err != nil {
		logger.FromGin(c).Warn("campaign audit failed", "campaign_id", campaignID, "err", err)
	}
}

// WebhookOrigin copies the carrier and caller address into the request context
// so the router can attach them to call-attempt audit records.
func WebhookOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		o := routing.Origin{IP: c.ClientIP(), Provider: c.Param("provider")}
		c.Request = c.Request.WithContext(routing.WithOrigin(c.Request.Context(), o))
		c.Next()
	}
}

func trimmed(s string) string { return strings.TrimSpace(s) }
