package httpapi

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"voice-platform/internal/routing"
)

// QueueStatus returns the caller's inbound queue.
func (h Handlers) QueueStatus(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.Router.QueueStatus(bid))
}

// ActiveCalls lists inbound calls still in flight.
func (h Handlers) ActiveCalls(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	active := h.Router.ActiveCalls(bid)
	c.JSON(http.StatusOK, gin.H{"calls": active, "total": len(active)})
}

func (h Handlers) GetInboundCall(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	call, err := h.Router.GetCall(bid, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

func (h Handlers) EndInboundCall(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	if err := h.Router.EndCall(c.Request.Context(), bid, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RemoveFromQueue drops a waiting caller, e.g. after a supervisor picks up.
func (h Handlers) RemoveFromQueue(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	reason := c.DefaultQuery("reason", "removed")
	if !h.Router.RemoveFromQueue(c.Request.Context(), bid, c.Param("id"), reason) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"success": false, "error": "call not in queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h Handlers) RoutingRules(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	rules, err := h.Rules.RoutingRules(c.Request.Context(), bid)
	if err != nil {
		fail(c, err)
		return
	}
	if rules == nil {
		rules = []routing.RoutingRule{}
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

type putRulesRequest struct {
	Rules []routing.RoutingRule `json:"rules"`
}

// PutRoutingRules replaces the caller's rule set. Rules without an id get one.
func (h Handlers) PutRoutingRules(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	var req putRulesRequest
	if !bindJSON(c, &req) {
		return
	}
	for i := range req.Rules {
		r := &req.Rules[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.BusinessID = bid
		switch r.Condition.Type {
		case routing.ConditionTimeBased, routing.ConditionCallerID, routing.ConditionQueueLength:
		default:
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown condition type " + string(r.Condition.Type)})
			return
		}
	}
	if err := h.Rules.PutRules(c.Request.Context(), bid, req.Rules); err != nil {
		fail(c, err)
		return
	}
	if h.Invalidate != nil {
		h.Invalidate(bid)
	}
	sort.SliceStable(req.Rules, func(i, j int) bool { return req.Rules[i].Priority > req.Rules[j].Priority })
	c.JSON(http.StatusOK, gin.H{"rules": req.Rules})
}
