package reporting

import "time"

// CampaignSnapshot is the by-value view of a campaign the dialer hands to
// reporting. Contact statuses are plain strings so reporting does not depend
// on dialer types.
type CampaignSnapshot struct {
	CampaignID string
	BusinessID string
	Status     string

	TotalContacts   int
	ContactStatuses []string

	Completed int
	Answered  int
	Voicemail int
	Failed    int

	StartedAt   *time.Time
	CompletedAt *time.Time
}

// CampaignResults summarizes one campaign's progress.
type CampaignResults struct {
	CampaignID string `json:"campaign_id"`
	Status     string `json:"status"`

	TotalContacts int `json:"total_contacts"`
	Completed     int `json:"completed"`
	Answered      int `json:"answered"`
	Voicemail     int `json:"voicemail"`
	Failed        int `json:"failed"`
	Remaining     int `json:"remaining"`

	// AnswerRate is answered / completed, in percent.
	AnswerRate float64 `json:"answer_rate"`
	Progress   int     `json:"progress"`

	ContactsByStatus map[string]int `json:"contacts_by_status"`

	ElapsedSeconds      int        `json:"elapsed_seconds"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
}

// QueueStats are wait-time aggregates over one business queue, in seconds.
type QueueStats struct {
	TotalWaiting int `json:"total_waiting"`
	AvgWaitTime  int `json:"avg_wait_time"`
	LongestWait  int `json:"longest_wait"`
}
