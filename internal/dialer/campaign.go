package dialer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"voice-platform/internal/events"
	"voice-platform/internal/reporting"
	"voice-platform/internal/store"

	"github.com/google/uuid"
)

const defaultCallsPerMinute = 5

func campaignKey(id string) string { return "campaign:" + id }

// ScheduleBulkCalls creates a campaign over contacts. With a schedule the
// campaign is "scheduled" and, when StartDate is set, starts at that time
// (immediately if already due); otherwise it stays a draft until started.
func (d *Dialer) ScheduleBulkCalls(ctx context.Context, businessID string, contacts []Recipient, cfg CampaignConfig) (Campaign, error) {
	if businessID == "" || len(contacts) == 0 {
		return Campaign{}, fmt.Errorf("%w: business and contacts are required", ErrInvalidRequest)
	}
	now := d.clock()
	c := Campaign{
		ID:            uuid.NewString(),
		BusinessID:    businessID,
		Name:          cfg.Name,
		Status:        CampaignDraft,
		Config:        cfg,
		Contacts:      make([]Contact, 0, len(contacts)),
		TotalContacts: len(contacts),
		CreatedAt:     now,
	}
	for _, r := range contacts {
		if r.PhoneNumber == "" {
			return Campaign{}, fmt.Errorf("%w: contact without phone number", ErrInvalidRequest)
		}
		c.Contacts = append(c.Contacts, Contact{ID: uuid.NewString(), Recipient: r, Status: ContactPending})
	}
	if cfg.Schedule != nil {
		c.Status = CampaignScheduled
	}

	d.mu.Lock()
	err := d.campaigns.Put(ctx, scoped(businessID, c.ID), c)
	d.mu.Unlock()
	if err != nil {
		return Campaign{}, err
	}
	d.metrics.CampaignTransition(string(c.Status))
	d.events.Publish(ctx, businessID, events.CampaignUpdate, map[string]any{
		"campaign_id":    c.ID,
		"status":         c.Status,
		"total_contacts": c.TotalContacts,
		"timestamp":      now,
	})

	if cfg.Schedule != nil && cfg.Schedule.StartDate != nil {
		delay := cfg.Schedule.StartDate.Sub(now)
		if delay > 0 {
			id := c.ID
			d.sched.Schedule(campaignKey(id), delay, func() {
				if err := d.StartCampaign(context.Background(), businessID, id); err != nil {
					d.log.Warn("scheduled campaign start failed", "campaign_id", id, "err", err)
				}
			})
			return c, nil
		}
		if err := d.StartCampaign(ctx, businessID, c.ID); err != nil {
			return c, err
		}
		return d.GetCampaign(ctx, businessID, c.ID)
	}
	return c, nil
}

// updateCampaign applies fn to the stored campaign under the dialer lock.
func (d *Dialer) updateCampaign(ctx context.Context, businessID, id string, fn func(*Campaign) error) (Campaign, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := d.campaigns.Get(ctx, scoped(businessID, id))
	if errors.Is(err, store.ErrNotFound) {
		return Campaign{}, ErrCampaignNotFound
	}
	if err != nil {
		return Campaign{}, err
	}
	if err := fn(&c); err != nil {
		return c, err
	}
	if err := d.campaigns.Put(ctx, scoped(businessID, id), c); err != nil {
		return c, err
	}
	return c, nil
}

func (d *Dialer) transition(ctx context.Context, c Campaign) {
	d.metrics.CampaignTransition(string(c.Status))
	d.events.Publish(ctx, c.BusinessID, events.CampaignUpdate, map[string]any{
		"campaign_id": c.ID,
		"status":      c.Status,
		"timestamp":   d.clock(),
	})
}

// StartCampaign moves a draft or scheduled campaign to running and arms the
// first pacing tick.
func (d *Dialer) StartCampaign(ctx context.Context, businessID, id string) error {
	c, err := d.updateCampaign(ctx, businessID, id, func(c *Campaign) error {
		switch c.Status {
		case CampaignRunning:
			return ErrAlreadyRunning
		case CampaignDraft, CampaignScheduled:
		default:
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.Status, CampaignRunning)
		}
		now := d.clock()
		c.Status = CampaignRunning
		if c.StartedAt == nil {
			c.StartedAt = &now
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.transition(ctx, c)
	d.arm(businessID, id, 0)
	return nil
}

// PauseCampaign stops a running campaign. The pending tick is cancelled
// before the new status is visible.
func (d *Dialer) PauseCampaign(ctx context.Context, businessID, id string) error {
	c, err := d.updateCampaign(ctx, businessID, id, func(c *Campaign) error {
		if c.Status != CampaignRunning {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.Status, CampaignPaused)
		}
		d.sched.Cancel(campaignKey(id))
		c.Status = CampaignPaused
		return nil
	})
	if err != nil {
		return err
	}
	d.transition(ctx, c)
	return nil
}

// ResumeCampaign re-enters the pacing loop of a paused campaign.
func (d *Dialer) ResumeCampaign(ctx context.Context, businessID, id string) error {
	c, err := d.updateCampaign(ctx, businessID, id, func(c *Campaign) error {
		if c.Status != CampaignPaused {
			return ErrNotPaused
		}
		c.Status = CampaignRunning
		return nil
	})
	if err != nil {
		return err
	}
	d.transition(ctx, c)
	d.arm(businessID, id, 0)
	return nil
}

// CancelCampaign ends a scheduled, running or paused campaign for good.
func (d *Dialer) CancelCampaign(ctx context.Context, businessID, id string) error {
	c, err := d.updateCampaign(ctx, businessID, id, func(c *Campaign) error {
		switch c.Status {
		case CampaignScheduled, CampaignRunning, CampaignPaused:
		default:
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.Status, CampaignCancelled)
		}
		d.sched.Cancel(campaignKey(id))
		c.Status = CampaignCancelled
		return nil
	})
	if err != nil {
		return err
	}
	d.transition(ctx, c)
	return nil
}

func (d *Dialer) GetCampaign(ctx context.Context, businessID, id string) (Campaign, error) {
	c, err := d.campaigns.Get(ctx, scoped(businessID, id))
	if errors.Is(err, store.ErrNotFound) {
		return Campaign{}, ErrCampaignNotFound
	}
	return c, err
}

// Campaigns lists the business's campaigns without their contact lists.
func (d *Dialer) Campaigns(ctx context.Context, businessID string) ([]Campaign, error) {
	all, err := d.campaigns.List(ctx, businessID+":")
	if err != nil {
		return nil, err
	}
	out := make([]Campaign, 0, len(all))
	for _, c := range all {
		out = append(out, c.Summary())
	}
	return out, nil
}

// CampaignResults summarizes progress, answer rate and a linear completion
// estimate.
func (d *Dialer) CampaignResults(ctx context.Context, businessID, id string) (reporting.CampaignResults, error) {
	c, err := d.GetCampaign(ctx, businessID, id)
	if err != nil {
		return reporting.CampaignResults{}, err
	}
	statuses := make([]string, len(c.Contacts))
	for i, ct := range c.Contacts {
		statuses[i] = string(ct.Status)
	}
	return reporting.Campaign(reporting.CampaignSnapshot{
		CampaignID:      c.ID,
		BusinessID:      c.BusinessID,
		Status:          string(c.Status),
		TotalContacts:   c.TotalContacts,
		ContactStatuses: statuses,
		Completed:       c.Completed,
		Answered:        c.Answered,
		Voicemail:       c.Voicemail,
		Failed:          c.Failed,
		StartedAt:       c.StartedAt,
		CompletedAt:     c.CompletedAt,
	}, d.clock())
}

// arm replaces the campaign's outstanding tick.
func (d *Dialer) arm(businessID, id string, delay time.Duration) {
	d.sched.Schedule(campaignKey(id), delay, func() { d.processCampaignCalls(context.Background(), businessID, id) })
}

func pacing(callsPerMinute int) time.Duration {
	if callsPerMinute <= 0 {
		callsPerMinute = defaultCallsPerMinute
	}
	return time.Duration(math.Ceil(60/float64(callsPerMinute))) * time.Second
}

// effective merges campaign overrides into the business policy.
func effective(c Campaign, base OutboundConfig) OutboundConfig {
	cfg := base
	if c.Config.RateLimiting != nil {
		cfg.RateLimiting = *c.Config.RateLimiting
	}
	if c.Config.Compliance != nil {
		tz := cfg.Compliance.Timezone
		cfg.Compliance = *c.Config.Compliance
		if cfg.Compliance.Timezone == "" {
			cfg.Compliance.Timezone = tz
		}
	}
	if c.Config.RetryPolicy != nil {
		cfg.RetryPolicy = *c.Config.RetryPolicy
	}
	if cfg.Compliance.MaxAttemptsPerNumber <= 0 {
		cfg.Compliance.MaxAttemptsPerNumber = 3
	}
	return cfg
}

// processCampaignCalls is one pacing tick: it dials at most one contact,
// waits for the outcome and re-arms itself.
func (d *Dialer) processCampaignCalls(ctx context.Context, businessID, id string) {
	log := d.log.With("campaign_id", id, "business_id", businessID)
	base := d.outboundConfig(ctx, businessID)

	var (
		contact  Contact
		cfg      OutboundConfig
		retryAt  *time.Time
		finished bool
		wait     time.Duration
	)
	c, err := d.updateCampaign(ctx, businessID, id, func(c *Campaign) error {
		if c.Status != CampaignRunning {
			return errNotRunning
		}
		if d.inflight[id] {
			return errInFlight
		}
		cfg = effective(*c, base)
		now := d.clock()

		idx := -1
		for i, ct := range c.Contacts {
			if ct.Status != ContactPending || ct.Attempts >= cfg.Compliance.MaxAttemptsPerNumber {
				continue
			}
			if ct.NextAttemptAt != nil && ct.NextAttemptAt.After(now) {
				if retryAt == nil || ct.NextAttemptAt.Before(*retryAt) {
					retryAt = ct.NextAttemptAt
				}
				continue
			}
			idx = i
			break
		}
		if idx < 0 {
			if retryAt != nil {
				wait = retryAt.Sub(now)
				return errWaiting
			}
			for i := range c.Contacts {
				if c.Contacts[i].Status == ContactPending {
					c.Contacts[i].Status = ContactFailed
					c.Failed++
					c.Completed++
				}
			}
			c.Status = CampaignCompleted
			c.Progress = 100
			c.CompletedAt = &now
			finished = true
			return nil
		}

		if s := c.Config.Schedule; s != nil {
			if s.EndDate != nil && now.After(*s.EndDate) {
				c.Status = CampaignCompleted
				c.CompletedAt = &now
				finished = true
				return nil
			}
			if !s.within(now, cfg.Compliance.Timezone) {
				next, ok := s.nextAllowed(now, cfg.Compliance.Timezone)
				if !ok {
					next = now.Add(time.Hour)
				}
				wait = next.Sub(now)
				return errWaiting
			}
		}

		ct := &c.Contacts[idx]
		ct.Status = ContactCalled
		ct.Attempts++
		ct.LastAttempt = &now
		ct.NextAttemptAt = nil
		contact = *ct
		d.inflight[id] = true
		return nil
	})
	switch {
	case errors.Is(err, errNotRunning), errors.Is(err, errInFlight):
		// A paused campaign stays idle; an in-flight tick re-arms itself.
		return
	case errors.Is(err, errWaiting):
		log.Info("campaign waiting for next window", "wait", wait.String())
		d.arm(businessID, id, wait)
		return
	case err != nil:
		log.Error("campaign tick failed", "err", err)
		return
	}

	if finished {
		d.metrics.CampaignTransition(string(c.Status))
		d.events.Publish(ctx, businessID, events.CampaignCompleted, map[string]any{
			"campaign_id":    id,
			"total_calls":    c.Completed,
			"answered_calls": c.Answered,
			"timestamp":      d.clock(),
		})
		return
	}

	outcome := d.dialContact(ctx, c, contact)
	retry := d.retryable(cfg.RetryPolicy, outcome) && contact.Attempts < cfg.Compliance.MaxAttemptsPerNumber

	c, err = d.updateCampaign(ctx, businessID, id, func(c *Campaign) error {
		delete(d.inflight, id)
		ct := findContact(c, contact.ID)
		if ct == nil {
			return ErrCampaignNotFound
		}
		ct.Result = outcome
		switch {
		case outcome == ResultAnswered:
			ct.Status = ContactCompleted
			c.Answered++
			c.Completed++
		case outcome == ResultVoicemail:
			ct.Status = ContactCompleted
			c.Voicemail++
			c.Completed++
		case retry:
			next := d.clock().Add(time.Duration(cfg.RetryPolicy.RetryDelay) * time.Second)
			ct.Status = ContactPending
			ct.NextAttemptAt = &next
		default:
			ct.Status = ContactFailed
			c.Failed++
			c.Completed++
		}
		c.Progress = reporting.Progress(c.Completed, c.TotalContacts)
		return nil
	})
	if err != nil {
		d.mu.Lock()
		delete(d.inflight, id)
		d.mu.Unlock()
		log.Error("campaign outcome update failed", "err", err)
		return
	}

	d.events.Publish(ctx, businessID, events.CampaignUpdate, map[string]any{
		"campaign_id":     id,
		"completed_calls": c.Completed,
		"answered_calls":  c.Answered,
		"progress":        c.Progress,
		"timestamp":       d.clock(),
	})
	if c.Status == CampaignRunning {
		d.arm(businessID, id, pacing(cfg.RateLimiting.CallsPerMinute))
	}
}

var (
	errNotRunning = errors.New("dialer: campaign not running")
	errWaiting    = errors.New("dialer: campaign waiting")
	errInFlight   = errors.New("dialer: campaign call in flight")
)

// dialContact places one campaign call and waits for its outcome. Policy
// rejections and carrier failures come back as the contact result.
func (d *Dialer) dialContact(ctx context.Context, c Campaign, ct Contact) string {
	sess, err := d.InitiateCall(ctx, c.BusinessID, ct.Recipient, c.Config.ScriptTemplate, c.Config.VoiceID, c.ID)
	if err != nil {
		if errors.Is(err, ErrCallFailed) {
			return ResultFailed
		}
		return err.Error()
	}
	final := d.waitForCompletion(ctx, sess, d.callWait)
	return final.Result
}

func (d *Dialer) retryable(p RetryPolicy, outcome string) bool {
	switch outcome {
	case ResultBusy:
		return p.RetryOnBusy
	case ResultNoAnswer, ResultTimeout:
		return p.RetryOnNoAnswer
	default:
		return false
	}
}

func findContact(c *Campaign, id string) *Contact {
	for i := range c.Contacts {
		if c.Contacts[i].ID == id {
			return &c.Contacts[i]
		}
	}
	return nil
}
