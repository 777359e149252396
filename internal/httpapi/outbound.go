package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"voice-platform/internal/dialer"
)

type outboundCallRequest struct {
	dialer.Recipient
	Script     string `json:"script"`
	VoiceID    string `json:"voice_id,omitempty"`
	CampaignID string `json:"campaign_id,omitempty"`
}

// OutboundCall places one compliant outbound call.
func (h Handlers) OutboundCall(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	var req outboundCallRequest
	if !bindJSON(c, &req) {
		return
	}
	if trimmed(req.PhoneNumber) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "phone_number required"})
		return
	}
	sess, err := h.Dialer.InitiateCall(c.Request.Context(), bid, req.Recipient, req.Script, req.VoiceID, req.CampaignID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": sess})
}

type createCampaignRequest struct {
	dialer.CampaignConfig
	Contacts []dialer.Recipient `json:"contacts"`
}

func (h Handlers) CreateCampaign(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	var req createCampaignRequest
	if !bindJSON(c, &req) {
		return
	}
	camp, err := h.Dialer.ScheduleBulkCalls(c.Request.Context(), bid, req.Contacts, req.CampaignConfig)
	if err != nil {
		fail(c, err)
		return
	}
	h.auditCampaign(c, bid, camp.ID, "create")
	c.JSON(http.StatusCreated, camp)
}

func (h Handlers) ListCampaigns(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	list, err := h.Dialer.Campaigns(c.Request.Context(), bid)
	if err != nil {
		fail(c, err)
		return
	}
	if list == nil {
		list = []dialer.Campaign{}
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": list, "total": len(list)})
}

func (h Handlers) GetCampaign(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	camp, err := h.Dialer.GetCampaign(c.Request.Context(), bid, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, camp)
}

func (h Handlers) CampaignResults(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	res, err := h.Dialer.CampaignResults(c.Request.Context(), bid, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// campaignAction adapts the start/pause/resume/cancel transitions to one handler shape.
func (h Handlers) campaignAction(action string, fn func(d *dialer.Dialer, ctx context.Context, businessID, id string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		bid, ok := businessID(c)
		if !ok {
			return
		}
		id := c.Param("id")
		if err := fn(h.Dialer, c.Request.Context(), bid, id); err != nil {
			fail(c, err)
			return
		}
		h.auditCampaign(c, bid, id, action)
		camp, err := h.Dialer.GetCampaign(c.Request.Context(), bid, id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "campaign": camp.Summary()})
	}
}

func (h Handlers) StartCampaign() gin.HandlerFunc {
	return h.campaignAction("start", (*dialer.Dialer).StartCampaign)
}

func (h Handlers) PauseCampaign() gin.HandlerFunc {
	return h.campaignAction("pause", (*dialer.Dialer).PauseCampaign)
}

func (h Handlers) ResumeCampaign() gin.HandlerFunc {
	return h.campaignAction("resume", (*dialer.Dialer).ResumeCampaign)
}

func (h Handlers) CancelCampaign() gin.HandlerFunc {
	return h.campaignAction("cancel", (*dialer.Dialer).CancelCampaign)
}

type callbacksRequest struct {
	Callbacks []dialer.CallbackRequest `json:"callbacks"`
}

// ScheduleCallbacks accepts one or many callback requests.
func (h Handlers) ScheduleCallbacks(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	var req callbacksRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.Dialer.HandleCallbacks(c.Request.Context(), bid, req.Callbacks)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"callbacks": out})
}

func (h Handlers) ListCallbacks(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	out, err := h.Dialer.Callbacks(c.Request.Context(), bid)
	if err != nil {
		fail(c, err)
		return
	}
	if out == nil {
		out = []dialer.Callback{}
	}
	c.JSON(http.StatusOK, gin.H{"callbacks": out})
}

func (h Handlers) GetSession(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	sess, err := h.Dialer.GetSession(c.Request.Context(), bid, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

type dncCheckRequest struct {
	PhoneNumber string `json:"phone_number"`
}

func (h Handlers) CheckDNC(c *gin.Context) {
	var req dncCheckRequest
	if !bindJSON(c, &req) {
		return
	}
	if trimmed(req.PhoneNumber) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone_number required"})
		return
	}
	listed := false
	if h.DNC != nil {
		var err error
		if listed, err = h.DNC.IsOnDNCList(c.Request.Context(), req.PhoneNumber); err != nil {
			fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"phone_number": req.PhoneNumber, "on_dnc_list": listed})
}
