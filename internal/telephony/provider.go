package telephony

import (
	"context"
	"time"

	"voice-platform/internal/calls"
)

// Carrier is the uniform contract every telephony vendor adapter implements.
//
// Rules:
//   - No vendor HTTP calls outside telephony adapters.
//   - MakeCall and SendSMS never return Go errors: transport and vendor failures
//     come back as a result with Success=false so the gateway can move on.
//   - ParseWebhook is pure and must tolerate unknown fields.
//   - Credentials are read-only after construction.
type Carrier interface {
	Name() Provider

	MakeCall(ctx context.Context, req CallRequest) CallResult
	GetCallStatus(ctx context.Context, callID string) (CallStatus, error)
	EndCall(ctx context.Context, callID string) bool
	TransferCall(ctx context.Context, callID, target string) bool

	SendSMS(ctx context.Context, req SMSRequest) SMSResult

	ListNumbers(ctx context.Context) ([]PhoneNumber, error)
	PurchaseNumber(ctx context.Context, req NumberRequest) (PhoneNumber, error)
	ReleaseNumber(ctx context.Context, number string) bool

	ParseWebhook(payload map[string]any) WebhookEvent
	IsHealthy(ctx context.Context) bool
}

type Provider string

const (
	ProviderTwilio     Provider = "twilio"
	ProviderTelnyx     Provider = "telnyx"
	ProviderPlivo      Provider = "plivo"
	ProviderSignalWire Provider = "signalwire"
)

// ParseProvider validates a provider name coming from a URL or config.
func ParseProvider(s string) (Provider, bool) {
	switch p := Provider(s); p {
	case ProviderTwilio, ProviderTelnyx, ProviderPlivo, ProviderSignalWire:
		return p, true
	default:
		return "", false
	}
}

// CallRequest describes one outbound call attempt. It is never persisted.
type CallRequest struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`

	// WebhookURL is fetched by the carrier when the call connects.
	// Empty means the adapter's default voice webhook.
	WebhookURL        string `json:"webhook_url,omitempty"`
	StatusCallbackURL string `json:"status_callback_url,omitempty"`

	// Timeout is the ring timeout. Zero means 30s.
	Timeout time.Duration `json:"timeout,omitempty"`

	MachineDetection bool `json:"machine_detection,omitempty"`
	Record           bool `json:"record,omitempty"`

	// Metadata is echoed into logs only.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CallResult is the outcome of a call attempt on one carrier (or the gateway).
type CallResult struct {
	Success  bool         `json:"success"`
	CallID   string       `json:"call_id,omitempty"`
	Provider Provider     `json:"provider,omitempty"`
	Status   calls.Status `json:"status"`
	Error    string       `json:"error,omitempty"`
}

// CallStatus is a polled snapshot of a call.
type CallStatus struct {
	CallID    string          `json:"call_id"`
	Provider  Provider        `json:"provider"`
	Status    calls.Status    `json:"status"`
	Direction calls.Direction `json:"direction"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`

	DurationSeconds int        `json:"duration_seconds"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`

	// Cost is the vendor-reported price in USD, zero when not yet known.
	Cost float64 `json:"cost,omitempty"`
}

type SMSRequest struct {
	To                string   `json:"to"`
	From              string   `json:"from,omitempty"`
	Body              string   `json:"body"`
	MediaURLs         []string `json:"media_urls,omitempty"`
	StatusCallbackURL string   `json:"status_callback_url,omitempty"`
}

type SMSStatus string

const (
	SMSStatusQueued    SMSStatus = "queued"
	SMSStatusSent      SMSStatus = "sent"
	SMSStatusDelivered SMSStatus = "delivered"
	SMSStatusFailed    SMSStatus = "failed"
)

type SMSResult struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"message_id,omitempty"`
	Provider  Provider  `json:"provider,omitempty"`
	Status    SMSStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
}

type PhoneNumber struct {
	Number       string   `json:"number"`
	ProviderID   string   `json:"provider_id,omitempty"`
	Provider     Provider `json:"provider"`
	FriendlyName string   `json:"friendly_name,omitempty"`
	Voice        bool     `json:"voice"`
	SMS          bool     `json:"sms"`
	MMS          bool     `json:"mms"`
	MonthlyCost  float64  `json:"monthly_cost,omitempty"`
}

// NumberRequest selects a number to purchase. Number wins over AreaCode.
type NumberRequest struct {
	Number   string `json:"number,omitempty"`
	AreaCode string `json:"area_code,omitempty"`
	Country  string `json:"country,omitempty"`
}

type EventType string

const (
	EventCallInitiated EventType = "call.initiated"
	EventCallRinging   EventType = "call.ringing"
	EventCallAnswered  EventType = "call.answered"
	EventCallCompleted EventType = "call.completed"
	EventCallFailed    EventType = "call.failed"
	EventSMSReceived   EventType = "sms.received"
	EventSMSDelivered  EventType = "sms.delivered"
	EventSMSFailed     EventType = "sms.failed"
)

// WebhookEvent is a vendor callback normalized into one shape.
// It is created once per callback and never mutated.
type WebhookEvent struct {
	Provider  Provider  `json:"provider"`
	Type      EventType `json:"event_type"`
	CallID    string    `json:"call_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`

	// Status is the normalized call status carried by the callback, if any.
	Status calls.Status `json:"status,omitempty"`

	// AnsweredBy is "human" or "machine" when answering machine detection ran.
	AnsweredBy string `json:"answered_by,omitempty"`

	Timestamp  time.Time      `json:"timestamp"`
	RawPayload map[string]any `json:"raw_payload,omitempty"`
}

// Voicemail reports whether machine detection classified the answer as a machine.
func (e WebhookEvent) Voicemail() bool {
	return e.AnsweredBy == "machine"
}
