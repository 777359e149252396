package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - business_id is required for tenancy isolation.
// - actor and ip capture are best-effort; do not block call flows on audit failures.
//
// Storage (Postgres): table audit_events, INSERT-only.

type Event struct {
	ID         string `json:"id" db:"id"`
	BusinessID string `json:"business_id" db:"business_id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event (empty for carrier webhooks).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress is the resolved client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`
	CallID     string `json:"call_id,omitempty" db:"call_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeAdminAction    EventType = "admin_action"
	EventTypeCallAttempt    EventType = "call_attempt"
	EventTypeCampaignAction EventType = "campaign_action"
)

// CallAttempt is the routing outcome of one inbound or outbound call.
type CallAttempt struct {
	BusinessID string `json:"business_id"`
	CallID     string `json:"call_id"`
	CampaignID string `json:"campaign_id,omitempty"`
	Direction  string `json:"direction"`
	From       string `json:"from"`
	To         string `json:"to"`

	// Action is the routing action taken (ai_agent, voicemail, transfer, queue, dial).
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	RuleID  string `json:"rule_id,omitempty"`

	// Provider is the carrier whose webhook triggered the attempt, if any.
	Provider string `json:"provider,omitempty"`
	IP       string `json:"-"`
}
