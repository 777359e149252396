package main

import (
	"context"
	"net/http"

	"voice-platform/internal/httpapi"
	"voice-platform/internal/rbac"
	"voice-platform/internal/telephony"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	handlers httpapi.Handlers
	webhooks telephony.WebhookHandler
	metrics  http.Handler
	authMW   gin.HandlerFunc
	socketMW gin.HandlerFunc
	ready    func(ctx context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	h := d.handlers

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := d.ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(d.metrics))
	r.POST("/auth/login", h.Login)

	// Carrier webhooks (public). The business is resolved from the dialed number.
	webhooks := r.Group("/webhooks")
	webhooks.Use(httpapi.WebhookOrigin())
	d.webhooks.Register(webhooks)

	// Browsers cannot set headers on websocket upgrades; they pass a socket token from /v1/ws/token.
	r.GET("/v1/ws", d.socketMW, rbac.RequireBusiness(), rbac.RequireAnyRole(rbac.Viewers...), h.Events)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(d.authMW)
	v1.Use(rbac.RequireBusiness())
	{
		v1.GET("/me", h.Me)
		v1.POST("/ws/token", rbac.RequireAnyRole(rbac.Viewers...), h.SocketToken)

		// INBOUND routes
		inbound := v1.Group("/inbound")
		{
			read := inbound.Group("", rbac.RequireAnyRole(rbac.Viewers...))
			read.GET("/queue", h.QueueStatus)
			read.GET("/calls", h.ActiveCalls)
			read.GET("/calls/:id", h.GetInboundCall)
			read.GET("/routing-rules", h.RoutingRules)

			ops := inbound.Group("", rbac.RequireAnyRole(rbac.CallOperators...))
			ops.POST("/calls/:id/end", h.EndInboundCall)
			ops.DELETE("/queue/:id", h.RemoveFromQueue)

			// Only owners and admins may change how calls are routed.
			inbound.PUT("/routing-rules", rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAdmin), h.PutRoutingRules)
		}

		// OUTBOUND routes
		outbound := v1.Group("/outbound")
		{
			read := outbound.Group("", rbac.RequireAnyRole(rbac.Viewers...))
			read.GET("/campaigns", h.ListCampaigns)
			read.GET("/campaigns/:id", h.GetCampaign)
			read.GET("/campaigns/:id/results", h.CampaignResults)
			read.GET("/callbacks", h.ListCallbacks)
			read.GET("/sessions/:id", h.GetSession)
			read.POST("/dnc/check", h.CheckDNC)

			ops := outbound.Group("", rbac.RequireAnyRole(rbac.CallOperators...))
			ops.POST("/call", h.OutboundCall)
			ops.POST("/campaigns", h.CreateCampaign)
			ops.POST("/campaigns/:id/start", h.StartCampaign())
			ops.POST("/campaigns/:id/pause", h.PauseCampaign())
			ops.POST("/campaigns/:id/resume", h.ResumeCampaign())
			ops.POST("/campaigns/:id/cancel", h.CancelCampaign())
			ops.POST("/callbacks", h.ScheduleCallbacks)
		}

		// TELEPHONY routes
		// Carrier-level operations; hidden network_operator is included here on purpose.
		tel := v1.Group("/telephony")
		{
			calls := tel.Group("/calls", rbac.RequireAnyRole(rbac.CallOperators...))
			calls.POST("", h.PlaceCall)
			calls.GET("/:id", h.CallStatus)
			calls.POST("/:id/end", h.HangupCall)
			calls.POST("/:id/transfer", h.TransferCall)
			tel.POST("/sms", rbac.RequireAnyRole(rbac.CallOperators...), h.SendSMS)

			admin := tel.Group("", rbac.RequireAnyRole(rbac.CarrierAdmins...))
			admin.GET("/numbers", h.ListNumbers)
			admin.POST("/numbers", h.PurchaseNumber)
			admin.DELETE("/numbers/:number", h.ReleaseNumber)
			admin.GET("/providers", h.Providers)
			admin.GET("/providers/health", h.ProviderHealth)
			admin.POST("/providers/health/check", h.CheckProviderHealth)
			admin.GET("/providers/cheapest", h.CheapestProvider)
			admin.PUT("/providers/primary", h.SetPrimary)
			admin.PUT("/providers/failover", h.SetFailover)
			admin.GET("/estimate", h.EstimateCost)
		}
	}
}
