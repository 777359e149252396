package routing

import (
	"time"

	"voice-platform/internal/telephony"
)

// IncomingCall is the minimal inbound webhook the router needs.
type IncomingCall struct {
	CallID     string             `json:"call_id"`
	From       string             `json:"from"`
	To         string             `json:"to"`
	CallerName string             `json:"caller_name,omitempty"`
	Provider   telephony.Provider `json:"provider,omitempty"`
}

// CallData is one live inbound call. Owned by the Router; created on webhook
// receipt and removed when the call ends.
type CallData struct {
	ID             string             `json:"id"`
	BusinessID     string             `json:"business_id"`
	CallerNumber   string             `json:"caller_number"`
	CallerName     string             `json:"caller_name,omitempty"`
	ExternalCallID string             `json:"external_call_id,omitempty"`
	Provider       telephony.Provider `json:"provider,omitempty"`
	Action         Action             `json:"action,omitempty"`
	StartTime      time.Time          `json:"start_time"`
}

// QueuedCall is a CallData waiting for capacity.
//
// Invariant: within one business queue, Position is always the dense 1..N
// sequence matching list order.
type QueuedCall struct {
	ID           string    `json:"id"`
	CallerNumber string    `json:"caller_number"`
	CallerName   string    `json:"caller_name,omitempty"`
	Position     int       `json:"position"`
	Priority     int       `json:"priority"`
	EnqueuedAt   time.Time `json:"enqueued_at"`

	// WaitTime is seconds since EnqueuedAt, filled in by QueueStatus.
	WaitTime int `json:"wait_time"`
}

type QueueStatus struct {
	QueueID      string       `json:"queue_id"`
	TotalWaiting int          `json:"total_waiting"`
	AvgWaitTime  int          `json:"avg_wait_time"`
	LongestWait  int          `json:"longest_wait"`
	ActiveCalls  int          `json:"active_calls"`
	Calls        []QueuedCall `json:"calls"`
}

type Action string

const (
	ActionAIAgent   Action = "ai_agent"
	ActionVoicemail Action = "voicemail"
	ActionTransfer  Action = "transfer"
	ActionQueue     Action = "queue"

	// Response-only actions.
	ActionRejected Action = "rejected"
	ActionError    Action = "error"
)

// CallResponse is the structured outcome of routing one call.
// The router never returns an error to its caller; failures are Success=false.
type CallResponse struct {
	Success bool   `json:"success"`
	CallID  string `json:"call_id"`
	Action  Action `json:"action"`
	Message string `json:"message"`

	// Voice hints for the webhook answer.
	Greeting         string `json:"greeting,omitempty"`
	VoicemailPrompt  string `json:"voicemail_prompt,omitempty"`
	MaxVoicemailSecs int    `json:"max_voicemail_secs,omitempty"`
	TransferTo       string `json:"transfer_to,omitempty"`
	QueuePosition    int    `json:"queue_position,omitempty"`
}

type ConditionType string

const (
	ConditionTimeBased   ConditionType = "TIME_BASED"
	ConditionCallerID    ConditionType = "CALLER_ID"
	ConditionQueueLength ConditionType = "QUEUE_LENGTH"
)

// RoutingRule is read-only to the router; an admin surface owns it.
type RoutingRule struct {
	ID         string `json:"id"`
	BusinessID string `json:"business_id"`
	Name       string `json:"name,omitempty"`
	Priority   int    `json:"priority"`
	Active     bool   `json:"active"`

	Condition    Condition    `json:"condition"`
	Action       Action       `json:"action"`
	ActionConfig ActionConfig `json:"action_config"`
}

// Condition holds the parameters of exactly one ConditionType.
type Condition struct {
	Type ConditionType `json:"type"`

	// TIME_BASED
	Schedule *Schedule `json:"schedule,omitempty"`

	// CALLER_ID
	Patterns  []string `json:"patterns,omitempty"`
	MatchType string   `json:"match_type,omitempty"` // whitelist | blacklist

	// QUEUE_LENGTH
	MaxQueueLength int `json:"max_queue_length,omitempty"`
}

// Schedule maps lower-case day names to HH:MM windows.
// Timezone is an IANA name; empty means the business timezone.
type Schedule struct {
	Timezone string                `json:"timezone,omitempty"`
	Days     map[string][]TimeSlot `json:"days"`
}

type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type ActionConfig struct {
	Greeting      string `json:"greeting,omitempty"`
	VoiceModelID  string `json:"voice_model_id,omitempty"`
	KnowledgeBase string `json:"knowledge_base,omitempty"`

	TransferTo   string `json:"transfer_to,omitempty"`
	WarmTransfer bool   `json:"warm_transfer,omitempty"`

	Priority int `json:"priority,omitempty"`
}

// BusinessConfig is the inbound configuration of one business.
type BusinessConfig struct {
	BusinessID    string        `json:"business_id"`
	BusinessHours Schedule      `json:"business_hours"`
	Routing       RoutingConfig `json:"routing"`
	Voice         VoiceSettings `json:"voice"`
	Notifications Notifications `json:"notifications"`
}

type RoutingConfig struct {
	DefaultAction    Action `json:"default_action"`
	OverflowHandling Action `json:"overflow_handling,omitempty"`
	MaxQueueTime     int    `json:"max_queue_time"`
	MaxQueueLength   int    `json:"max_queue_length"`
	DefaultTransfer  string `json:"default_transfer,omitempty"`
}

type VoiceSettings struct {
	Greeting             string `json:"greeting"`
	VoicemailPrompt      string `json:"voicemail_prompt"`
	MaxVoicemailDuration int    `json:"max_voicemail_duration"`
	VoiceModelID         string `json:"voice_model_id,omitempty"`
	KnowledgeBase        string `json:"knowledge_base,omitempty"`
}

type Notifications struct {
	MissedCallAlert bool `json:"missed_call_alert"`
	VoicemailAlert  bool `json:"voicemail_alert"`
}

// AgentOptions is handed to the agent collaborator when a call is accepted.
type AgentOptions struct {
	VoiceModelID  string `json:"voice_model_id,omitempty"`
	Greeting      string `json:"greeting,omitempty"`
	KnowledgeBase string `json:"knowledge_base,omitempty"`
}
