package telephony

import (
	"context"
	"errors"
	"net/http"

	"voice-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WebhookParser turns a raw vendor payload into a WebhookEvent.
// The gateway implements it by delegating to the configured adapter.
type WebhookParser interface {
	ParseWebhook(provider Provider, payload map[string]any) (WebhookEvent, error)
}

// InboundHandler decides what to do with a call that arrives on one of the
// business's numbers.
type InboundHandler interface {
	HandleInbound(ctx context.Context, businessID string, ev WebhookEvent) (VoiceResponse, error)
}

// OutboundAnswerer answers the voice webhook of a call we placed ourselves.
// ok=false means the call is unknown to it.
type OutboundAnswerer interface {
	AnswerOutbound(ctx context.Context, ev WebhookEvent) (VoiceResponse, bool)
}

// CallEventHandler consumes status callbacks. It returns true when the event
// belonged to it; dispatch stops at the first handler that claims it.
type CallEventHandler interface {
	HandleCallEvent(ctx context.Context, ev WebhookEvent) bool
}

// WebhookHandler converts vendor callbacks to internal types, delegates to the
// router / dialer, and writes the vendor-specific voice answer.
//
// No business logic here.
//
// Tenant scoping:
// - business_id is resolved from the dialed number by BusinessResolver and passed explicitly.
type WebhookHandler struct {
	Parser   WebhookParser
	Inbound  InboundHandler
	Outbound OutboundAnswerer
	Events   []CallEventHandler

	BusinessResolver func(c *gin.Context, toNumber string) (string, error)
}

func (h WebhookHandler) provider(c *gin.Context) (Provider, bool) {
	p, ok := ParseProvider(c.Param("provider"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return "", false
	}
	if h.Parser == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "webhook parser not configured"})
		return "", false
	}
	return p, true
}

func (h WebhookHandler) event(c *gin.Context, p Provider) (WebhookEvent, bool) {
	log := logger.FromGin(c)

	payload, err := ReadWebhookPayload(c.Request)
	if err != nil {
		log.Warn("webhook payload read failed", "provider", string(p), "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return WebhookEvent{}, false
	}
	ev, err := h.Parser.ParseWebhook(p, payload)
	if err != nil {
		log.Warn("webhook parse failed", "provider", string(p), "err", err)
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "provider not configured"})
		return WebhookEvent{}, false
	}
	return ev, true
}

// Voice answers the call-connect webhook (voice / answer).
func (h WebhookHandler) Voice(c *gin.Context) {
	log := logger.FromGin(c)

	p, ok := h.provider(c)
	if !ok {
		return
	}
	ev, ok := h.event(c, p)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var (
		resp VoiceResponse
		err  error
	)
	answered := false
	if h.Outbound != nil {
		resp, answered = h.Outbound.AnswerOutbound(ctx, ev)
	}
	if !answered {
		if h.Inbound == nil || h.BusinessResolver == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "inbound routing not configured"})
			return
		}
		businessID, rerr := h.BusinessResolver(c, ev.To)
		if rerr != nil {
			log.Warn("business resolution failed", "to", ev.To, "err", rerr)
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown destination"})
			return
		}
		resp, err = h.Inbound.HandleInbound(ctx, businessID, ev)
		if err != nil {
			log.Error("inbound call routing failed", "call_id", ev.CallID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "routing failed"})
			return
		}
	}

	body, contentType, err := RenderVoiceResponse(p, resp)
	if errors.Is(err, ErrEmptyVoiceResponse) {
		body, contentType, err = RenderVoiceResponse(p, VoiceResponse{Hangup: true})
	}
	if err != nil {
		log.Error("voice response render failed", "provider", string(p), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
		return
	}
	c.Header("Content-Type", contentType)
	c.String(http.StatusOK, body)
}

// Status dispatches call status callbacks to the first handler that owns the call.
func (h WebhookHandler) Status(c *gin.Context) {
	p, ok := h.provider(c)
	if !ok {
		return
	}
	ev, ok := h.event(c, p)
	if !ok {
		return
	}
	handled := false
	for _, eh := range h.Events {
		if eh.HandleCallEvent(c.Request.Context(), ev) {
			handled = true
			break
		}
	}
	if !handled {
		logger.FromGin(c).Debug("status callback not claimed", "provider", string(p), "call_id", ev.CallID, "event", string(ev.Type))
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "handled": handled})
}

// SMSStatus acknowledges message delivery callbacks.
func (h WebhookHandler) SMSStatus(c *gin.Context) {
	p, ok := h.provider(c)
	if !ok {
		return
	}
	ev, ok := h.event(c, p)
	if !ok {
		return
	}
	logger.FromGin(c).Info("sms status", "provider", string(p), "message_id", ev.MessageID, "event", string(ev.Type))
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// Transfer answers the redirect issued by TransferCall: it dials the target
// carried in the "to" query parameter.
func (h WebhookHandler) Transfer(c *gin.Context) {
	p, ok := ParseProvider(c.Param("provider"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}
	to := c.Query("to")
	if to == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing transfer target"})
		return
	}
	body, contentType, err := RenderVoiceResponse(p, VoiceResponse{DialTo: to})
	if err != nil {
		logger.FromGin(c).Error("transfer render failed", "provider", string(p), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
		return
	}
	c.Header("Content-Type", contentType)
	c.String(http.StatusOK, body)
}

// Register mounts the webhook endpoints on g (typically /webhooks).
func (h WebhookHandler) Register(g gin.IRoutes) {
	g.POST("/:provider/voice", h.Voice)
	g.POST("/:provider/answer", h.Voice)
	g.POST("/:provider/status", h.Status)
	g.POST("/:provider/sms-status", h.SMSStatus)
	g.POST("/:provider/transfer", h.Transfer)
}
