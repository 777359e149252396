package dialer

import (
	"time"

	"voice-platform/internal/telephony"
)

// Recipient is who we call. Timezone is an IANA name; empty means the
// business timezone.
type Recipient struct {
	PhoneNumber  string            `json:"phone_number"`
	Name         string            `json:"name,omitempty"`
	Email        string            `json:"email,omitempty"`
	Timezone     string            `json:"timezone,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

type ContactStatus string

const (
	ContactPending   ContactStatus = "pending"
	ContactCalled    ContactStatus = "called"
	ContactCompleted ContactStatus = "completed"
	ContactFailed    ContactStatus = "failed"
)

// Contact is one recipient inside a campaign. Only the pacing loop mutates it.
type Contact struct {
	ID string `json:"id"`
	Recipient

	Status      ContactStatus `json:"status"`
	Attempts    int           `json:"attempts"`
	LastAttempt *time.Time    `json:"last_attempt,omitempty"`
	Result      string        `json:"result,omitempty"`

	// NextAttemptAt holds back a retried contact until retryDelay has passed.
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
}

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignRunning   CampaignStatus = "running"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// CampaignConfig is supplied by the caller when the campaign is created.
// Nil sections fall back to the business's OutboundConfig.
type CampaignConfig struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	ScriptTemplate string `json:"script_template"`
	VoiceID        string `json:"voice_id,omitempty"`

	Schedule     *CallSchedule     `json:"schedule,omitempty"`
	RateLimiting *RateLimitConfig  `json:"rate_limiting,omitempty"`
	Compliance   *ComplianceConfig `json:"compliance,omitempty"`
	RetryPolicy  *RetryPolicy      `json:"retry_policy,omitempty"`
}

// CallSchedule restricts when a campaign may dial. AllowedHours maps
// lower-case day names to inclusive HH:MM windows in Timezone.
type CallSchedule struct {
	Timezone      string                `json:"timezone,omitempty"`
	AllowedHours  map[string][]TimeSlot `json:"allowed_hours,omitempty"`
	StartDate     *time.Time            `json:"start_date,omitempty"`
	EndDate       *time.Time            `json:"end_date,omitempty"`
	BlackoutDates []string              `json:"blackout_dates,omitempty"` // YYYY-MM-DD
}

type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Campaign is a rate-limited batch of outbound calls over a contact list.
//
// Invariants:
// - Transitions only happen through Start/Pause/Resume/Cancel and completion.
// - At most one pacing tick is outstanding per campaign.
// - Completed counts contacts with a final outcome; Progress reaches 100 only on completion.
type Campaign struct {
	ID         string         `json:"id"`
	BusinessID string         `json:"business_id"`
	Name       string         `json:"name"`
	Status     CampaignStatus `json:"status"`
	Config     CampaignConfig `json:"config"`
	Contacts   []Contact      `json:"contacts"`

	TotalContacts int `json:"total_contacts"`
	Completed     int `json:"completed_calls"`
	Answered      int `json:"answered_calls"`
	Voicemail     int `json:"voicemail_calls"`
	Failed        int `json:"failed_calls"`
	Progress      int `json:"progress"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Summary drops the contact list.
func (c Campaign) Summary() Campaign {
	c.Contacts = nil
	return c
}

type SessionStatus string

const (
	SessionDialing    SessionStatus = "dialing"
	SessionRinging    SessionStatus = "ringing"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// Outcome strings stored in CallSession.Result and Contact.Result.
const (
	ResultAnswered  = "answered"
	ResultVoicemail = "voicemail"
	ResultBusy      = "busy"
	ResultNoAnswer  = "no-answer"
	ResultFailed    = "failed"
	ResultTimeout   = "timeout"
)

// CallSession tracks one outbound call from dial to terminal status.
type CallSession struct {
	ID              string             `json:"id"`
	BusinessID      string             `json:"business_id"`
	CampaignID      string             `json:"campaign_id,omitempty"`
	RecipientNumber string             `json:"recipient_number"`
	RecipientName   string             `json:"recipient_name,omitempty"`
	Script          string             `json:"script,omitempty"`
	VoiceID         string             `json:"voice_id,omitempty"`
	AudioKey        string             `json:"audio_key,omitempty"`
	Provider        telephony.Provider `json:"provider,omitempty"`
	ExternalCallID  string             `json:"external_call_id,omitempty"`

	Status   SessionStatus `json:"status"`
	Result   string        `json:"result,omitempty"`
	Duration int           `json:"duration,omitempty"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

type CallbackStatus string

const (
	CallbackPending    CallbackStatus = "pending"
	CallbackInProgress CallbackStatus = "in_progress"
	CallbackCompleted  CallbackStatus = "completed"
	CallbackFailed     CallbackStatus = "failed"
)

// CallbackRequest is what a caller submits.
type CallbackRequest struct {
	PhoneNumber   string     `json:"phone_number"`
	Name          string     `json:"name,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	PreferredTime *time.Time `json:"preferred_time,omitempty"`
}

// Callback is a single outbound call-back, independent of campaigns.
type Callback struct {
	ID         string `json:"id"`
	BusinessID string `json:"business_id"`
	CallbackRequest

	Status      CallbackStatus `json:"status"`
	RequestedAt time.Time      `json:"requested_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// OutboundConfig is a business's dialing policy.
type OutboundConfig struct {
	RateLimiting RateLimitConfig  `json:"rate_limiting"`
	Compliance   ComplianceConfig `json:"compliance"`
	Scripting    ScriptingConfig  `json:"scripting"`
	RetryPolicy  RetryPolicy      `json:"retry_policy"`
}

type RateLimitConfig struct {
	CallsPerMinute     int `json:"calls_per_minute"`
	MaxConcurrentCalls int `json:"max_concurrent_calls"`
	PauseBetweenCalls  int `json:"pause_between_calls"` // seconds
}

type ComplianceConfig struct {
	HonorDoNotCall         bool `json:"honor_do_not_call"`
	RespectTimeZones       bool `json:"respect_time_zones"`
	MaxAttemptsPerNumber   int  `json:"max_attempts_per_number"`
	MinDaysBetweenAttempts int  `json:"min_days_between_attempts"`
	RecordingDisclosure    bool `json:"recording_disclosure"`

	// Timezone is the business default when the recipient has none.
	Timezone string `json:"timezone,omitempty"`
}

type ScriptingConfig struct {
	DefaultScript      string   `json:"default_script,omitempty"`
	DefaultVoiceID     string   `json:"default_voice_id,omitempty"`
	PersonalizedFields []string `json:"personalized_fields,omitempty"`
	FallbackResponses  []string `json:"fallback_responses,omitempty"`
}

type RetryPolicy struct {
	RetryOnBusy     bool `json:"retry_on_busy"`
	RetryOnNoAnswer bool `json:"retry_on_no_answer"`
	RetryDelay      int  `json:"retry_delay"` // seconds
}

// DefaultOutboundConfig is the policy used when a business has none stored.
func DefaultOutboundConfig() OutboundConfig {
	return OutboundConfig{
		RateLimiting: RateLimitConfig{CallsPerMinute: 5, MaxConcurrentCalls: 3, PauseBetweenCalls: 5},
		Compliance: ComplianceConfig{
			HonorDoNotCall:         true,
			RespectTimeZones:       true,
			MaxAttemptsPerNumber:   3,
			MinDaysBetweenAttempts: 1,
			RecordingDisclosure:    true,
		},
		Scripting: ScriptingConfig{
			DefaultVoiceID:     "abe",
			PersonalizedFields: []string{"name", "company"},
			FallbackResponses: []string{
				"I'm sorry, I didn't catch that. Could you please repeat?",
				"Let me connect you with someone who can help.",
			},
		},
		RetryPolicy: RetryPolicy{RetryOnBusy: true, RetryOnNoAnswer: true, RetryDelay: 60},
	}
}
