package dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"voice-platform/internal/events"
	"voice-platform/internal/store"
	"voice-platform/internal/telephony"
	"voice-platform/pkg/logger"

	"github.com/google/uuid"
)

// Policy rejections. The texts are shown to API callers verbatim.
var (
	ErrRateLimited         = errors.New("Rate limit exceeded. Please wait before making more calls.")
	ErrDoNotCall           = errors.New("Number is on Do Not Call list")
	ErrOutsideCallingHours = errors.New("Outside allowed calling hours for recipient time zone")
	ErrConcurrencyLimit    = errors.New("Maximum concurrent calls reached")
)

var (
	ErrCallFailed        = errors.New("dialer: call failed")
	ErrInvalidRequest    = errors.New("dialer: invalid request")
	ErrSessionNotFound   = errors.New("dialer: session not found")
	ErrCampaignNotFound  = errors.New("dialer: campaign not found")
	ErrCallbackNotFound  = errors.New("dialer: callback not found")
	ErrAlreadyRunning    = errors.New("dialer: campaign is already running")
	ErrNotPaused         = errors.New("dialer: campaign is not paused")
	ErrInvalidTransition = errors.New("dialer: invalid campaign transition")
)

const (
	defaultCallWait   = 30 * time.Second
	sessionRetention  = 60 * time.Second
	defaultMaxSession = 300
)

// Caller places outbound calls. The gateway implements it.
type Caller interface {
	MakeCall(ctx context.Context, req telephony.CallRequest) telephony.CallResult
}

// DNCChecker answers do-not-call lookups.
type DNCChecker interface {
	IsOnDNCList(ctx context.Context, phoneNumber string) (bool, error)
}

// ConfigSource returns a business's outbound policy. Implemented by internal/business.
type ConfigSource interface {
	OutboundConfig(ctx context.Context, businessID string) (OutboundConfig, error)
}

// ScriptRenderer pre-renders the personalized script to audio and returns a
// storage key. Optional.
type ScriptRenderer interface {
	Prerender(ctx context.Context, text, voiceID string) (string, error)
}

type Metrics interface {
	DialOutcome(outcome string)
	SessionCreated()
	CampaignTransition(state string)
}

type nopMetrics struct{}

func (nopMetrics) DialOutcome(string)        {}
func (nopMetrics) SessionCreated()           {}
func (nopMetrics) CampaignTransition(string) {}

type staticConfig struct{}

func (staticConfig) OutboundConfig(context.Context, string) (OutboundConfig, error) {
	return DefaultOutboundConfig(), nil
}

type Option func(*Dialer)

func WithLogger(l *slog.Logger) Option        { return func(d *Dialer) { d.log = l } }
func WithConfigSource(c ConfigSource) Option  { return func(d *Dialer) { d.config = c } }
func WithDNC(c DNCChecker) Option             { return func(d *Dialer) { d.dnc = c } }
func WithPublisher(p events.Publisher) Option { return func(d *Dialer) { d.events = p } }
func WithRateLimiter(l RateLimiter) Option    { return func(d *Dialer) { d.rate = l } }
func WithConcurrencyLimiter(l ConcurrencyLimiter) Option {
	return func(d *Dialer) { d.concurrency = l }
}
func WithScheduler(s Scheduler) Option       { return func(d *Dialer) { d.sched = s } }
func WithMetrics(m Metrics) Option           { return func(d *Dialer) { d.metrics = m } }
func WithRenderer(r ScriptRenderer) Option   { return func(d *Dialer) { d.renderer = r } }
func WithClock(now func() time.Time) Option  { return func(d *Dialer) { d.clock = now } }
func WithCallWait(wait time.Duration) Option { return func(d *Dialer) { d.callWait = wait } }

// WithStore persists campaigns, sessions and callbacks in s.
func WithStore(s store.Store) Option { return func(d *Dialer) { d.store = s } }

// Dialer places single outbound calls and drives campaigns and callbacks.
//
// Rules:
// - Policy checks (rate, DNC, calling hours) run before any carrier is contacted.
// - Campaign pacing is sequential: one call in flight per campaign.
// - State is keyed by business id; nothing leaks across tenants.
type Dialer struct {
	caller      Caller
	config      ConfigSource
	dnc         DNCChecker
	events      events.Publisher
	rate        RateLimiter
	concurrency ConcurrencyLimiter
	sched       Scheduler
	metrics     Metrics
	renderer    ScriptRenderer
	log         *slog.Logger
	clock       func() time.Time
	callWait    time.Duration
	store       store.Store

	campaigns *store.Collection[Campaign]
	sessions  *store.Collection[CallSession]
	callbacks *store.Collection[Callback]

	// mu serializes read-modify-write of stored campaigns and callbacks,
	// and guards inflight.
	mu       sync.Mutex
	inflight map[string]bool

	waitMu   sync.Mutex
	waiters  map[string]*sessionWaiter
	external map[string]string // vendor call id -> session id
}

// sessionWaiter signals the pacing loop when a session turns terminal and
// remembers whether the session still holds a concurrency slot.
type sessionWaiter struct {
	businessID string

	done    chan struct{}
	closed  bool
	holding bool
}

func New(caller Caller, opts ...Option) *Dialer {
	d := &Dialer{
		caller:   caller,
		config:   staticConfig{},
		events:   events.Nop{},
		metrics:  nopMetrics{},
		log:      slog.Default(),
		clock:    time.Now,
		callWait: defaultCallWait,
		inflight: map[string]bool{},
		waiters:  map[string]*sessionWaiter{},
		external: map[string]string{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.store == nil {
		d.store = store.NewMemoryStore()
	}
	if d.rate == nil {
		d.rate = NewMemoryRateLimiter(DefaultRateLimit, d.clock)
	}
	if d.concurrency == nil {
		d.concurrency = NewMemoryConcurrency()
	}
	if d.sched == nil {
		ts := NewTimerScheduler()
		go ts.Run(context.Background())
		d.sched = ts
	}
	d.campaigns = store.NewCollection[Campaign](d.store, "outbound_campaigns")
	d.sessions = store.NewCollection[CallSession](d.store, "outbound_sessions")
	d.callbacks = store.NewCollection[Callback](d.store, "outbound_callbacks")
	d.log = logger.Component(d.log, "outbound_dialer")
	return d
}

// scoped keys keep every stored record under its business.
func scoped(businessID, id string) string { return businessID + ":" + id }

func (d *Dialer) outboundConfig(ctx context.Context, businessID string) OutboundConfig {
	cfg, err := d.config.OutboundConfig(ctx, businessID)
	if err != nil {
		d.log.Warn("outbound config lookup failed, using defaults", "business_id", businessID, "err", err)
		return DefaultOutboundConfig()
	}
	return cfg
}

// InitiateCall places one outbound call after the policy checks. On carrier
// failure the session is stored as failed, call:failed is published and the
// error is returned together with the session.
func (d *Dialer) InitiateCall(ctx context.Context, businessID string, rcpt Recipient, script, voiceID, campaignID string) (CallSession, error) {
	if businessID == "" || rcpt.PhoneNumber == "" {
		return CallSession{}, fmt.Errorf("%w: business and phone number are required", ErrInvalidRequest)
	}

	token, allowed, err := d.rate.Reserve(ctx, businessID)
	if err != nil {
		return CallSession{}, fmt.Errorf("dialer: rate limit check: %w", err)
	}
	if !allowed {
		d.metrics.DialOutcome("rate_limited")
		return CallSession{}, ErrRateLimited
	}
	// Only calls handed to a carrier keep their slot in the window.
	placed := false
	defer func() {
		if placed {
			return
		}
		if err := d.rate.Cancel(context.WithoutCancel(ctx), businessID, token); err != nil {
			d.log.Warn("rate limit release failed", "business_id", businessID, "err", err)
		}
	}()

	cfg := d.outboundConfig(ctx, businessID)
	if cfg.Compliance.HonorDoNotCall && d.dnc != nil {
		blocked, err := d.dnc.IsOnDNCList(ctx, rcpt.PhoneNumber)
		if err != nil {
			return CallSession{}, fmt.Errorf("dialer: dnc lookup: %w", err)
		}
		if blocked {
			d.metrics.DialOutcome("dnc")
			return CallSession{}, ErrDoNotCall
		}
	}
	if cfg.Compliance.RespectTimeZones && !allowedCallTime(d.clock(), rcpt.Timezone, cfg.Compliance.Timezone) {
		d.metrics.DialOutcome("outside_hours")
		return CallSession{}, ErrOutsideCallingHours
	}

	ok, err := d.concurrency.Acquire(ctx, businessID, cfg.RateLimiting.MaxConcurrentCalls)
	if err != nil {
		return CallSession{}, fmt.Errorf("dialer: concurrency check: %w", err)
	}
	if !ok {
		d.metrics.DialOutcome("concurrency_limited")
		return CallSession{}, ErrConcurrencyLimit
	}

	if voiceID == "" {
		voiceID = firstNonEmpty(cfg.Scripting.DefaultVoiceID, "default")
	}
	sess := CallSession{
		ID:              uuid.NewString(),
		BusinessID:      businessID,
		CampaignID:      campaignID,
		RecipientNumber: rcpt.PhoneNumber,
		RecipientName:   rcpt.Name,
		Script:          personalize(firstNonEmpty(script, cfg.Scripting.DefaultScript), rcpt),
		VoiceID:         voiceID,
		Status:          SessionDialing,
		StartTime:       d.clock(),
	}
	d.registerWaiter(sess)
	d.metrics.SessionCreated()

	if d.renderer != nil && sess.Script != "" {
		key, err := d.renderer.Prerender(ctx, sess.Script, sess.VoiceID)
		if err != nil {
			d.log.Warn("script prerender failed", "session_id", sess.ID, "err", err)
		}
		sess.AudioKey = key
	}
	d.saveSession(ctx, sess)

	res := d.caller.MakeCall(ctx, telephony.CallRequest{
		To:               rcpt.PhoneNumber,
		Timeout:          defaultCallWait,
		MachineDetection: true,
		Metadata: map[string]string{
			"session_id":  sess.ID,
			"business_id": businessID,
			"campaign_id": campaignID,
		},
	})
	if !res.Success {
		end := d.clock()
		sess.Status = SessionFailed
		sess.Result = "Failed to connect"
		sess.EndTime = &end
		d.saveSession(ctx, sess)
		d.finish(ctx, sess)
		d.metrics.DialOutcome("failed")
		d.events.Publish(ctx, businessID, events.CallFailed, map[string]any{
			"session_id":       sess.ID,
			"recipient_number": rcpt.PhoneNumber,
			"campaign_id":      campaignID,
			"error":            res.Error,
			"timestamp":        end,
		})
		return sess, fmt.Errorf("%w: %s", ErrCallFailed, res.Error)
	}

	sess.Status = SessionRinging
	sess.ExternalCallID = res.CallID
	sess.Provider = res.Provider
	d.saveSession(ctx, sess)
	d.indexExternal(res.CallID, sess)
	placed = true

	d.metrics.DialOutcome("initiated")
	d.events.Publish(ctx, businessID, events.CallStarted, map[string]any{
		"session_id":       sess.ID,
		"recipient_number": rcpt.PhoneNumber,
		"recipient_name":   rcpt.Name,
		"campaign_id":      campaignID,
		"timestamp":        d.clock(),
	})
	return sess, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
