package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"voice-platform/internal/telephony"
)

// providerParam reads an optional provider from ?provider= or the JSON body
// field already decoded into raw. Empty means "let the gateway choose".
func providerParam(c *gin.Context, raw string) (telephony.Provider, bool) {
	if raw == "" {
		raw = c.Query("provider")
	}
	if raw == "" {
		return "", true
	}
	p, ok := telephony.ParseProvider(raw)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown provider " + raw})
		return "", false
	}
	return p, true
}

type placeCallRequest struct {
	telephony.CallRequest
	Provider string `json:"provider,omitempty"`
}

// PlaceCall dials through the gateway directly, bypassing dialer compliance.
// It is for operator test calls and carrier diagnostics.
func (h Handlers) PlaceCall(c *gin.Context) {
	var req placeCallRequest
	if !bindJSON(c, &req) {
		return
	}
	if trimmed(req.To) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to required"})
		return
	}
	p, ok := providerParam(c, req.Provider)
	if !ok {
		return
	}
	var res telephony.CallResult
	if p != "" {
		res = h.Gateway.MakeCallWithProvider(c.Request.Context(), p, req.CallRequest)
	} else {
		res = h.Gateway.MakeCall(c.Request.Context(), req.CallRequest)
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, res)
}

func (h Handlers) CallStatus(c *gin.Context) {
	p, ok := providerParam(c, "")
	if !ok {
		return
	}
	st, err := h.Gateway.GetCallStatus(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h Handlers) HangupCall(c *gin.Context) {
	p, ok := providerParam(c, "")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": h.Gateway.EndCall(c.Request.Context(), c.Param("id"), p)})
}

type transferRequest struct {
	Target   string `json:"target"`
	Provider string `json:"provider,omitempty"`
}

func (h Handlers) TransferCall(c *gin.Context) {
	var req transferRequest
	if !bindJSON(c, &req) {
		return
	}
	if trimmed(req.Target) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "target required"})
		return
	}
	p, ok := providerParam(c, req.Provider)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": h.Gateway.TransferCall(c.Request.Context(), c.Param("id"), req.Target, p)})
}

func (h Handlers) SendSMS(c *gin.Context) {
	var req telephony.SMSRequest
	if !bindJSON(c, &req) {
		return
	}
	if trimmed(req.To) == "" || req.Body == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to and body required"})
		return
	}
	res := h.Gateway.SendSMS(c.Request.Context(), req)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, res)
}

func (h Handlers) ListNumbers(c *gin.Context) {
	p, ok := providerParam(c, "")
	if !ok {
		return
	}
	nums, err := h.Gateway.ListNumbers(c.Request.Context(), p)
	if err != nil {
		fail(c, err)
		return
	}
	if nums == nil {
		nums = []telephony.PhoneNumber{}
	}
	c.JSON(http.StatusOK, gin.H{"numbers": nums})
}

type purchaseRequest struct {
	telephony.NumberRequest
	Provider string `json:"provider,omitempty"`
}

func (h Handlers) PurchaseNumber(c *gin.Context) {
	var req purchaseRequest
	if !bindJSON(c, &req) {
		return
	}
	p, ok := providerParam(c, req.Provider)
	if !ok {
		return
	}
	num, err := h.Gateway.PurchaseNumber(c.Request.Context(), req.NumberRequest, p)
	if err != nil {
		fail(c, err)
		return
	}
	h.auditAdmin(c, "number purchased", num.Number)
	c.JSON(http.StatusCreated, num)
}

func (h Handlers) ReleaseNumber(c *gin.Context) {
	p, ok := providerParam(c, "")
	if !ok {
		return
	}
	number := c.Param("number")
	released := h.Gateway.ReleaseNumber(c.Request.Context(), number, p)
	if released {
		h.auditAdmin(c, "number released", number)
	}
	c.JSON(http.StatusOK, gin.H{"success": released})
}

func (h Handlers) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"providers":        h.Gateway.Providers(),
		"primary":          h.Gateway.Primary(),
		"failover_enabled": h.Gateway.FailoverEnabled(),
	})
}

func (h Handlers) ProviderHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"health": h.Gateway.Health()})
}

// CheckProviderHealth probes every carrier now instead of waiting for the next tick.
func (h Handlers) CheckProviderHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"health": h.Gateway.CheckHealth(c.Request.Context())})
}

func (h Handlers) CheapestProvider(c *gin.Context) {
	p, ok := h.Gateway.CheapestProvider()
	if !ok {
		fail(c, errNoHealthyProvider)
		return
	}
	cost, _ := h.Gateway.ProviderCost(p)
	c.JSON(http.StatusOK, gin.H{"provider": p, "cost_per_minute": cost})
}

type primaryRequest struct {
	Provider string `json:"provider"`
}

func (h Handlers) SetPrimary(c *gin.Context) {
	var req primaryRequest
	if !bindJSON(c, &req) {
		return
	}
	p, ok := telephony.ParseProvider(req.Provider)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown provider " + req.Provider})
		return
	}
	if err := h.Gateway.SetPrimary(p); err != nil {
		fail(c, err)
		return
	}
	h.auditAdmin(c, "primary carrier set", string(p))
	c.JSON(http.StatusOK, gin.H{"success": true, "primary": p})
}

type failoverRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h Handlers) SetFailover(c *gin.Context) {
	var req failoverRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Enabled == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "enabled required"})
		return
	}
	h.Gateway.SetFailover(*req.Enabled)
	h.auditAdmin(c, "failover toggled", strconv.FormatBool(*req.Enabled))
	c.JSON(http.StatusOK, gin.H{"success": true, "failover_enabled": *req.Enabled})
}

// EstimateCost prices a call of ?minutes= on every carrier.
func (h Handlers) EstimateCost(c *gin.Context) {
	minutes, err := strconv.ParseFloat(c.DefaultQuery("minutes", "1"), 64)
	if err != nil || minutes < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "minutes must be a non-negative number"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"minutes": minutes, "estimates": h.Gateway.EstimateCallCost(minutes)})
}
