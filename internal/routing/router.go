package routing

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"voice-platform/internal/audit"
	"voice-platform/internal/calls"
	"voice-platform/internal/events"
	"voice-platform/internal/reporting"
	"voice-platform/internal/store"
	"voice-platform/internal/telephony"
	"voice-platform/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrCallNotFound   = errors.New("routing: call not found")
	ErrInvalidRequest = errors.New("routing: invalid request")
)

// ConfigSource looks up inbound configuration. Implemented by internal/business.
type ConfigSource interface {
	BusinessConfig(ctx context.Context, businessID string) (BusinessConfig, error)
	RoutingRules(ctx context.Context, businessID string) ([]RoutingRule, error)
}

// AgentSession is the result of handing a call to the voice agent.
type AgentSession struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id,omitempty"`
}

// AgentConnector hands an answered call to the conversational agent.
type AgentConnector interface {
	AcceptInboundCall(ctx context.Context, callID string, opts AgentOptions) (AgentSession, error)
}

// AcceptAllAgent accepts every call with a fresh session id. It stands in
// for the agent service until one is wired.
type AcceptAllAgent struct{}

func (AcceptAllAgent) AcceptInboundCall(context.Context, string, AgentOptions) (AgentSession, error) {
	return AgentSession{Success: true, SessionID: uuid.NewString()}, nil
}

// Transferer redirects a live call. The gateway implements it.
type Transferer interface {
	TransferCall(ctx context.Context, callID, target string, provider telephony.Provider) bool
}

type AuditLogger interface {
	LogCallAttempt(ctx context.Context, rec audit.CallAttempt) error
}

type Metrics interface {
	InboundCall(action string)
	QueueDepth(businessID string, n int)
}

type nopMetrics struct{}

func (nopMetrics) InboundCall(string)     {}
func (nopMetrics) QueueDepth(string, int) {}

type Option func(*Router)

func WithLogger(l *slog.Logger) Option        { return func(r *Router) { r.log = l } }
func WithAgent(a AgentConnector) Option       { return func(r *Router) { r.agent = a } }
func WithTransferer(t Transferer) Option      { return func(r *Router) { r.transfer = t } }
func WithAudit(a AuditLogger) Option          { return func(r *Router) { r.audit = a } }
func WithPublisher(p events.Publisher) Option { return func(r *Router) { r.events = p } }
func WithMetrics(m Metrics) Option            { return func(r *Router) { r.metrics = m } }
func WithClock(now func() time.Time) Option   { return func(r *Router) { r.clock = now } }

// WithStore persists live CallData so other processes can read it.
func WithStore(s store.Store) Option {
	return func(r *Router) { r.calls = store.NewCollection[CallData](s, "inbound_calls") }
}

// Router decides, per inbound call, between agent, voicemail, transfer and queue.
//
// Invariants:
// - Business hours are checked before any rule: outside hours is always voicemail.
// - Rules are evaluated highest priority first; the first match wins.
// - HandleIncoming never returns an error; every outcome is a CallResponse.
// - Each business queue is mutated under its own lock.
type Router struct {
	config   ConfigSource
	agent    AgentConnector
	transfer Transferer
	audit    AuditLogger
	events   events.Publisher
	metrics  Metrics
	log      *slog.Logger
	clock    func() time.Time

	calls  *store.Collection[CallData]
	queues *queues

	mu     sync.RWMutex
	active map[string]CallData
}

func NewRouter(config ConfigSource, opts ...Option) *Router {
	r := &Router{
		config:  config,
		agent:   AcceptAllAgent{},
		events:  events.Nop{},
		metrics: nopMetrics{},
		log:     slog.Default(),
		clock:   time.Now,
		queues:  newQueues(),
		active:  map[string]CallData{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.Component(r.log, "inbound_router")
	return r
}

// HandleIncoming routes one inbound call for businessID.
func (r *Router) HandleIncoming(ctx context.Context, businessID string, in IncomingCall) CallResponse {
	if in.CallID == "" || in.From == "" || in.To == "" || businessID == "" {
		r.log.Warn("invalid inbound webhook", "business_id", businessID, "call_id", in.CallID)
		return CallResponse{Success: false, Action: ActionRejected, Message: "Invalid webhook data"}
	}

	cfg, err := r.config.BusinessConfig(ctx, businessID)
	if err != nil {
		r.log.Error("business config lookup failed", "business_id", businessID, "err", err)
		resp := CallResponse{Success: false, Action: ActionError, Message: "Failed to route call"}
		r.record(ctx, businessID, CallData{ExternalCallID: in.CallID, CallerNumber: in.From}, in.To, resp, "")
		return resp
	}

	now := r.clock()
	call := CallData{
		ID:             uuid.NewString(),
		BusinessID:     businessID,
		CallerNumber:   in.From,
		CallerName:     in.CallerName,
		ExternalCallID: in.CallID,
		Provider:       in.Provider,
		StartTime:      now,
	}
	r.track(ctx, call)
	r.events.Publish(ctx, businessID, events.CallIncoming, map[string]any{
		"call_id":       call.ID,
		"caller_number": call.CallerNumber,
		"caller_name":   call.CallerName,
		"timestamp":     now,
	})

	action, rule := r.decide(ctx, cfg, call, now)
	resp := r.execute(ctx, cfg, call, action, rule)

	call.Action = action
	r.track(ctx, call)
	ruleID := ""
	if rule != nil {
		ruleID = rule.ID
	}
	r.record(ctx, businessID, call, in.To, resp, ruleID)
	r.metrics.InboundCall(string(resp.Action))
	return resp
}

// decide picks the action. rule is nil when the action came from business
// hours or the default.
func (r *Router) decide(ctx context.Context, cfg BusinessConfig, call CallData, now time.Time) (Action, *RoutingRule) {
	if cfg.BusinessHours.Configured() && !cfg.BusinessHours.Within(now, "") {
		return ActionVoicemail, nil
	}

	rules, err := r.config.RoutingRules(ctx, call.BusinessID)
	if err != nil {
		// Fall through to the default action.
		r.log.Warn("routing rules lookup failed", "business_id", call.BusinessID, "err", err)
	}
	tz := cfg.BusinessHours.Timezone
	for _, rule := range activeRules(rules) {
		if r.matches(rule.Condition, call, now, tz) {
			rule := rule
			return normalizeAction(rule.Action), &rule
		}
	}

	if a := normalizeAction(cfg.Routing.DefaultAction); a != "" {
		return a, nil
	}
	return ActionAIAgent, nil
}

func (r *Router) matches(c Condition, call CallData, now time.Time, tz string) bool {
	switch ConditionType(stringsUpper(string(c.Type))) {
	case ConditionTimeBased:
		if c.Schedule == nil {
			return false
		}
		return c.Schedule.Within(now, tz)
	case ConditionCallerID:
		return matchCallerID(call.CallerNumber, c.Patterns, c.MatchType)
	case ConditionQueueLength:
		return r.queues.get(call.BusinessID).len() >= c.MaxQueueLength
	default:
		return false
	}
}

func (r *Router) execute(ctx context.Context, cfg BusinessConfig, call CallData, action Action, rule *RoutingRule) CallResponse {
	var ac ActionConfig
	if rule != nil {
		ac = rule.ActionConfig
	}

	switch action {
	case ActionVoicemail:
		return r.voicemail(cfg, call)
	case ActionTransfer:
		return r.transferCall(ctx, cfg, call, ac)
	case ActionQueue:
		if r.overflowing(cfg, call.BusinessID) {
			overflow := normalizeAction(cfg.Routing.OverflowHandling)
			if overflow == "" || overflow == ActionQueue {
				overflow = ActionVoicemail
			}
			r.log.Info("queue full, overflowing", "business_id", call.BusinessID, "action", string(overflow))
			return r.execute(ctx, cfg, call, overflow, nil)
		}
		return r.enqueue(ctx, call, ac.Priority)
	default:
		return r.connectAgent(ctx, cfg, call, ac)
	}
}

func (r *Router) overflowing(cfg BusinessConfig, businessID string) bool {
	limit := cfg.Routing.MaxQueueLength
	return limit > 0 && r.queues.get(businessID).len() >= limit
}

func (r *Router) voicemail(cfg BusinessConfig, call CallData) CallResponse {
	return CallResponse{
		Success:          true,
		CallID:           call.ID,
		Action:           ActionVoicemail,
		Message:          "Routed to voicemail",
		VoicemailPrompt:  cfg.Voice.VoicemailPrompt,
		MaxVoicemailSecs: cfg.Voice.MaxVoicemailDuration,
	}
}

func (r *Router) connectAgent(ctx context.Context, cfg BusinessConfig, call CallData, ac ActionConfig) CallResponse {
	opts := AgentOptions{
		VoiceModelID:  firstNonEmpty(ac.VoiceModelID, cfg.Voice.VoiceModelID),
		Greeting:      firstNonEmpty(ac.Greeting, cfg.Voice.Greeting),
		KnowledgeBase: firstNonEmpty(ac.KnowledgeBase, cfg.Voice.KnowledgeBase),
	}
	target := firstNonEmpty(call.ExternalCallID, call.ID)

	sess, err := r.agent.AcceptInboundCall(ctx, target, opts)
	if err != nil || !sess.Success {
		r.log.Warn("agent hookup failed", "business_id", call.BusinessID, "call_id", call.ID, "err", err)
		return CallResponse{Success: false, CallID: call.ID, Action: ActionAIAgent, Message: "Failed to connect to AI agent"}
	}

	r.events.Publish(ctx, call.BusinessID, events.CallStarted, map[string]any{
		"call_id":    call.ID,
		"session_id": sess.SessionID,
		"action":     ActionAIAgent,
	})
	return CallResponse{
		Success:  true,
		CallID:   call.ID,
		Action:   ActionAIAgent,
		Message:  "Connected to AI agent",
		Greeting: opts.Greeting,
	}
}

func (r *Router) transferCall(ctx context.Context, cfg BusinessConfig, call CallData, ac ActionConfig) CallResponse {
	target := firstNonEmpty(ac.TransferTo, cfg.Routing.DefaultTransfer)
	if target == "" {
		return CallResponse{Success: false, CallID: call.ID, Action: ActionTransfer, Message: "No transfer target configured"}
	}
	if r.transfer != nil && call.ExternalCallID != "" {
		if !r.transfer.TransferCall(ctx, call.ExternalCallID, target, call.Provider) {
			return CallResponse{Success: false, CallID: call.ID, Action: ActionTransfer, Message: "Failed to transfer call"}
		}
	}
	r.events.Publish(ctx, call.BusinessID, events.CallTransferred, map[string]any{
		"call_id":     call.ID,
		"transfer_to": target,
		"warm":        ac.WarmTransfer,
	})
	return CallResponse{
		Success:    true,
		CallID:     call.ID,
		Action:     ActionTransfer,
		Message:    "Call transferred",
		TransferTo: target,
	}
}

func (r *Router) enqueue(ctx context.Context, call CallData, priority int) CallResponse {
	qc := r.AddToQueue(ctx, call, priority)
	return CallResponse{
		Success:       true,
		CallID:        call.ID,
		Action:        ActionQueue,
		Message:       "Call added to queue",
		QueuePosition: qc.Position,
	}
}

// AddToQueue inserts call into its business queue and returns it with its
// assigned position.
func (r *Router) AddToQueue(ctx context.Context, call CallData, priority int) QueuedCall {
	q := r.queues.get(call.BusinessID)
	qc := q.insert(QueuedCall{
		ID:           call.ID,
		CallerNumber: call.CallerNumber,
		CallerName:   call.CallerName,
		Priority:     priority,
		EnqueuedAt:   r.clock(),
	})
	r.publishQueue(ctx, call.BusinessID)
	return qc
}

// RemoveFromQueue drops callID from the business queue. reason ("served" or
// "abandoned") is only logged.
func (r *Router) RemoveFromQueue(ctx context.Context, businessID, callID, reason string) bool {
	if !r.queues.get(businessID).remove(callID) {
		return false
	}
	r.log.Info("call removed from queue", "business_id", businessID, "call_id", callID, "reason", reason)
	r.publishQueue(ctx, businessID)
	return true
}

func (r *Router) publishQueue(ctx context.Context, businessID string) {
	st := r.QueueStatus(businessID)
	r.metrics.QueueDepth(businessID, st.TotalWaiting)
	r.events.Publish(ctx, businessID, events.QueueUpdate, st)
}

// QueueStatus snapshots the business queue with wait times as of now.
func (r *Router) QueueStatus(businessID string) QueueStatus {
	now := r.clock()
	calls := r.queues.get(businessID).snapshot()
	waits := make([]time.Duration, len(calls))
	for i := range calls {
		waits[i] = now.Sub(calls[i].EnqueuedAt)
		calls[i].WaitTime = int(waits[i].Seconds())
	}
	stats := reporting.Queue(waits)
	return QueueStatus{
		QueueID:      businessID,
		TotalWaiting: stats.TotalWaiting,
		AvgWaitTime:  stats.AvgWaitTime,
		LongestWait:  stats.LongestWait,
		ActiveCalls:  len(r.ActiveCalls(businessID)),
		Calls:        calls,
	}
}

// EndCall finishes a tracked call: it leaves the queue (abandoned), is
// dropped from the active set and call:ended is published with its duration.
func (r *Router) EndCall(ctx context.Context, businessID, callID string) error {
	r.mu.Lock()
	call, ok := r.active[callID]
	if ok && call.BusinessID == businessID {
		delete(r.active, callID)
	}
	r.mu.Unlock()
	if !ok || call.BusinessID != businessID {
		return ErrCallNotFound
	}

	r.RemoveFromQueue(ctx, businessID, callID, "abandoned")
	if r.calls != nil {
		if err := r.calls.Delete(ctx, callID); err != nil {
			r.log.Warn("call delete failed", "call_id", callID, "err", err)
		}
	}

	duration := int(r.clock().Sub(call.StartTime).Seconds())
	r.events.Publish(ctx, businessID, events.CallEnded, map[string]any{
		"call_id":  callID,
		"duration": duration,
	})
	return nil
}

// EndByExternalID ends the tracked call that carries the vendor call id.
// ok=false when no such call is tracked.
func (r *Router) EndByExternalID(ctx context.Context, externalID string) bool {
	if externalID == "" {
		return false
	}
	r.mu.RLock()
	var found CallData
	for _, c := range r.active {
		if c.ExternalCallID == externalID {
			found = c
			break
		}
	}
	r.mu.RUnlock()
	if found.ID == "" {
		return false
	}
	return r.EndCall(ctx, found.BusinessID, found.ID) == nil
}

func (r *Router) GetCall(businessID, callID string) (CallData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.active[callID]
	if !ok || c.BusinessID != businessID {
		return CallData{}, ErrCallNotFound
	}
	return c, nil
}

// ActiveCalls lists the business's live calls, oldest first.
func (r *Router) ActiveCalls(businessID string) []CallData {
	r.mu.RLock()
	out := make([]CallData, 0)
	for _, c := range r.active {
		if c.BusinessID == businessID {
			out = append(out, c)
		}
	}
	r.mu.RUnlock()
	sortCalls(out)
	return out
}

func (r *Router) track(ctx context.Context, call CallData) {
	r.mu.Lock()
	r.active[call.ID] = call
	r.mu.Unlock()
	if r.calls == nil {
		return
	}
	if err := r.calls.Put(ctx, call.ID, call); err != nil {
		r.log.Warn("call persist failed", "call_id", call.ID, "err", err)
	}
}

// record writes the audit entry. Failures are logged and dropped.
func (r *Router) record(ctx context.Context, businessID string, call CallData, to string, resp CallResponse, ruleID string) {
	if r.audit == nil {
		return
	}
	err := r.audit.LogCallAttempt(ctx, audit.CallAttempt{
		BusinessID: businessID,
		CallID:     firstNonEmpty(call.ID, call.ExternalCallID),
		Direction:  string(calls.DirectionInbound),
		From:       call.CallerNumber,
		To:         to,
		Action:     string(resp.Action),
		Success:    resp.Success,
		Reason:     resp.Message,
		RuleID:     ruleID,
	})
	if err != nil {
		r.log.Warn("audit call attempt failed", "business_id", businessID, "err", err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
