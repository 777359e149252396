package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"voice-platform/internal/calls"
	"voice-platform/internal/pricing"
	"voice-platform/internal/telephony"
	"voice-platform/pkg/logger"
)

const (
	errAllCallProviders = "All providers failed to initiate call"
	errAllSMSProviders  = "All providers failed to send SMS"

	defaultHealthInterval = 60 * time.Second
)

var (
	ErrProviderNotConfigured = errors.New("gateway: provider not configured")
	ErrNoProviders           = errors.New("gateway: no providers configured")
	ErrCallNotFound          = errors.New("gateway: call not found on any provider")
)

// Config is fixed at construction; primary and failover can be changed at
// runtime through SetPrimary / SetFailover.
type Config struct {
	Failover bool

	// Primary overrides the lowest-priority carrier as the first choice.
	Primary telephony.Provider

	HealthInterval time.Duration
}

// Metrics is the slice of internal/metrics the gateway records to.
type Metrics interface {
	CarrierAttempt(provider, operation string, ok bool)
	CarrierHealth(provider string, healthy bool)
}

type nopMetrics struct{}

func (nopMetrics) CarrierAttempt(string, string, bool) {}
func (nopMetrics) CarrierHealth(string, bool)          {}

type Option func(*Gateway)

func WithLogger(l *slog.Logger) Option { return func(g *Gateway) { g.log = l } }

func WithMetrics(m Metrics) Option { return func(g *Gateway) { g.metrics = m } }

func WithPricing(t *pricing.Table) Option { return func(g *Gateway) { g.prices = t } }

// Gateway fronts every configured carrier behind one Carrier-like API.
//
// Invariants:
//   - Carrier order is fixed at construction: ascending priority, stable on ties.
//   - Failover walks primary first, then the rest in that order, skipping
//     carriers last seen unhealthy. A failed attempt marks the carrier unhealthy
//     until the next successful probe.
//   - The health map is private to the gateway and guarded by mu.
type Gateway struct {
	log      *slog.Logger
	metrics  Metrics
	prices   *pricing.Table
	interval time.Duration

	carriers []telephony.ConfiguredCarrier
	byName   map[telephony.Provider]telephony.Carrier

	mu       sync.RWMutex
	primary  telephony.Provider
	failover bool
	health   map[telephony.Provider]bool
}

// New builds a gateway over carriers. Carriers are assumed enabled (see
// telephony.NewCarriers); duplicates of a provider keep the first entry.
func New(cfg Config, carriers []telephony.ConfiguredCarrier, opts ...Option) *Gateway {
	sorted := make([]telephony.ConfiguredCarrier, 0, len(carriers))
	seen := map[telephony.Provider]bool{}
	for _, c := range carriers {
		if c.Carrier == nil || seen[c.Carrier.Name()] {
			continue
		}
		seen[c.Carrier.Name()] = true
		sorted = append(sorted, c)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	g := &Gateway{
		log:      slog.Default(),
		metrics:  nopMetrics{},
		prices:   pricing.NewTable(nil),
		interval: cfg.HealthInterval,
		carriers: sorted,
		byName:   make(map[telephony.Provider]telephony.Carrier, len(sorted)),
		failover: cfg.Failover,
		health:   make(map[telephony.Provider]bool, len(sorted)),
	}
	for _, o := range opts {
		o(g)
	}
	g.log = logger.Component(g.log, "gateway")
	if g.interval <= 0 {
		g.interval = defaultHealthInterval
	}
	for _, c := range sorted {
		g.byName[c.Carrier.Name()] = c.Carrier
		g.health[c.Carrier.Name()] = true
	}
	if len(sorted) > 0 {
		g.primary = sorted[0].Carrier.Name()
	}
	if _, ok := g.byName[cfg.Primary]; ok {
		g.primary = cfg.Primary
	}
	return g
}

// attemptOrder is primary first, then the remaining carriers by priority.
// With failover disabled only the primary is returned.
func (g *Gateway) attemptOrder() []telephony.Carrier {
	g.mu.RLock()
	primary, failover := g.primary, g.failover
	g.mu.RUnlock()

	out := make([]telephony.Carrier, 0, len(g.carriers))
	if p, ok := g.byName[primary]; ok {
		out = append(out, p)
	}
	if !failover {
		return out
	}
	for _, c := range g.carriers {
		if c.Carrier.Name() != primary {
			out = append(out, c.Carrier)
		}
	}
	return out
}

// all returns every carrier in priority order regardless of primary.
func (g *Gateway) all() []telephony.Carrier {
	out := make([]telephony.Carrier, 0, len(g.carriers))
	for _, c := range g.carriers {
		out = append(out, c.Carrier)
	}
	return out
}

func (g *Gateway) carrier(name telephony.Provider) (telephony.Carrier, error) {
	c, ok := g.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, name)
	}
	return c, nil
}

func (g *Gateway) healthy(name telephony.Provider) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.health[name]
}

func (g *Gateway) setHealth(name telephony.Provider, ok bool) {
	g.mu.Lock()
	g.health[name] = ok
	g.mu.Unlock()
	g.metrics.CarrierHealth(string(name), ok)
}

// placeCall runs one adapter attempt. A panicking adapter counts as a failed
// attempt so failover carries on to the next carrier.
func (g *Gateway) placeCall(ctx context.Context, c telephony.Carrier, req telephony.CallRequest) (res telephony.CallResult) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("carrier panicked placing call", "provider", string(c.Name()), "panic", fmt.Sprint(r))
			res = telephony.CallResult{Success: false, Status: calls.StatusFailed, Error: fmt.Sprintf("provider panic: %v", r)}
		}
	}()
	return c.MakeCall(ctx, req)
}

func (g *Gateway) sendSMS(ctx context.Context, c telephony.Carrier, req telephony.SMSRequest) (res telephony.SMSResult) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("carrier panicked sending sms", "provider", string(c.Name()), "panic", fmt.Sprint(r))
			res = telephony.SMSResult{Success: false, Status: telephony.SMSStatusFailed, Error: fmt.Sprintf("provider panic: %v", r)}
		}
	}()
	return c.SendSMS(ctx, req)
}

// MakeCall places req on the first healthy carrier that accepts it.
func (g *Gateway) MakeCall(ctx context.Context, req telephony.CallRequest) telephony.CallResult {
	for _, c := range g.attemptOrder() {
		name := c.Name()
		if !g.healthy(name) {
			continue
		}
		res := g.placeCall(ctx, c, req)
		g.metrics.CarrierAttempt(string(name), "make_call", res.Success)
		if res.Success {
			res.Provider = name
			return res
		}
		g.log.Warn("carrier call attempt failed", "provider", string(name), "to", req.To, "err", res.Error)
		g.setHealth(name, false)
	}
	return telephony.CallResult{Success: false, Status: calls.StatusFailed, Error: errAllCallProviders}
}

// MakeCallWithProvider bypasses failover.
func (g *Gateway) MakeCallWithProvider(ctx context.Context, name telephony.Provider, req telephony.CallRequest) telephony.CallResult {
	c, ok := g.byName[name]
	if !ok {
		return telephony.CallResult{Success: false, Status: calls.StatusFailed, Error: fmt.Sprintf("Provider %s not configured", name)}
	}
	res := g.placeCall(ctx, c, req)
	g.metrics.CarrierAttempt(string(name), "make_call", res.Success)
	res.Provider = name
	return res
}

// GetCallStatus asks provider, or every carrier in priority order when
// provider is empty, returning the first answer.
func (g *Gateway) GetCallStatus(ctx context.Context, callID string, provider telephony.Provider) (telephony.CallStatus, error) {
	if provider != "" {
		c, err := g.carrier(provider)
		if err != nil {
			return telephony.CallStatus{}, err
		}
		return c.GetCallStatus(ctx, callID)
	}
	for _, c := range g.all() {
		st, err := c.GetCallStatus(ctx, callID)
		if err == nil {
			return st, nil
		}
	}
	return telephony.CallStatus{}, ErrCallNotFound
}

func (g *Gateway) EndCall(ctx context.Context, callID string, provider telephony.Provider) bool {
	return g.targeted(provider, func(c telephony.Carrier) bool { return c.EndCall(ctx, callID) })
}

func (g *Gateway) TransferCall(ctx context.Context, callID, target string, provider telephony.Provider) bool {
	return g.targeted(provider, func(c telephony.Carrier) bool { return c.TransferCall(ctx, callID, target) })
}

func (g *Gateway) ReleaseNumber(ctx context.Context, number string, provider telephony.Provider) bool {
	return g.targeted(provider, func(c telephony.Carrier) bool { return c.ReleaseNumber(ctx, number) })
}

// targeted runs fn on provider, or on each carrier until one returns true.
func (g *Gateway) targeted(provider telephony.Provider, fn func(telephony.Carrier) bool) bool {
	if provider != "" {
		c, ok := g.byName[provider]
		return ok && fn(c)
	}
	for _, c := range g.all() {
		if fn(c) {
			return true
		}
	}
	return false
}

// SendSMS uses the same failover walk as MakeCall.
func (g *Gateway) SendSMS(ctx context.Context, req telephony.SMSRequest) telephony.SMSResult {
	for _, c := range g.attemptOrder() {
		name := c.Name()
		if !g.healthy(name) {
			continue
		}
		res := g.sendSMS(ctx, c, req)
		g.metrics.CarrierAttempt(string(name), "send_sms", res.Success)
		if res.Success {
			res.Provider = name
			return res
		}
		g.log.Warn("carrier sms attempt failed", "provider", string(name), "to", req.To, "err", res.Error)
		g.setHealth(name, false)
	}
	return telephony.SMSResult{Success: false, Status: telephony.SMSStatusFailed, Error: errAllSMSProviders}
}

// ListNumbers returns provider's numbers, or a best-effort union across all
// carriers when provider is empty.
func (g *Gateway) ListNumbers(ctx context.Context, provider telephony.Provider) ([]telephony.PhoneNumber, error) {
	if provider != "" {
		c, err := g.carrier(provider)
		if err != nil {
			return nil, err
		}
		return c.ListNumbers(ctx)
	}
	var out []telephony.PhoneNumber
	for _, c := range g.all() {
		nums, err := c.ListNumbers(ctx)
		if err != nil {
			g.log.Warn("list numbers failed", "provider", string(c.Name()), "err", err)
			continue
		}
		out = append(out, nums...)
	}
	return out, nil
}

// PurchaseNumber buys on provider, or on the primary when provider is empty.
func (g *Gateway) PurchaseNumber(ctx context.Context, req telephony.NumberRequest, provider telephony.Provider) (telephony.PhoneNumber, error) {
	if provider == "" {
		g.mu.RLock()
		provider = g.primary
		g.mu.RUnlock()
		if provider == "" {
			return telephony.PhoneNumber{}, ErrNoProviders
		}
	}
	c, err := g.carrier(provider)
	if err != nil {
		return telephony.PhoneNumber{}, err
	}
	return c.PurchaseNumber(ctx, req)
}

// ParseWebhook implements telephony.WebhookParser.
func (g *Gateway) ParseWebhook(provider telephony.Provider, payload map[string]any) (telephony.WebhookEvent, error) {
	c, err := g.carrier(provider)
	if err != nil {
		return telephony.WebhookEvent{}, err
	}
	return c.ParseWebhook(payload), nil
}

func (g *Gateway) SetPrimary(name telephony.Provider) error {
	if _, ok := g.byName[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProviderNotConfigured, name)
	}
	g.mu.Lock()
	g.primary = name
	g.mu.Unlock()
	g.log.Info("primary carrier changed", "provider", string(name))
	return nil
}

func (g *Gateway) SetFailover(enabled bool) {
	g.mu.Lock()
	g.failover = enabled
	g.mu.Unlock()
}

// ProviderInfo is the public view of one configured carrier.
type ProviderInfo struct {
	Name     telephony.Provider `json:"name"`
	Priority int                `json:"priority"`
	Healthy  bool               `json:"healthy"`
	Primary  bool               `json:"primary"`
}

// Providers lists carriers in priority order.
func (g *Gateway) Providers() []ProviderInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]ProviderInfo, 0, len(g.carriers))
	for _, c := range g.carriers {
		name := c.Carrier.Name()
		out = append(out, ProviderInfo{Name: name, Priority: c.Priority, Healthy: g.health[name], Primary: name == g.primary})
	}
	return out
}

func (g *Gateway) Primary() telephony.Provider {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.primary
}

func (g *Gateway) FailoverEnabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.failover
}
