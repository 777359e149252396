package business

import (
	"context"
	"sort"
	"strings"
	"sync"

	"voice-platform/internal/dialer"
	"voice-platform/internal/routing"
)

// MemorySource keeps business configuration in process. Unknown businesses
// get DefaultConfig and dialer.DefaultOutboundConfig.
type MemorySource struct {
	mu       sync.RWMutex
	configs  map[string]routing.BusinessConfig
	rules    map[string][]routing.RoutingRule
	outbound map[string]dialer.OutboundConfig
	numbers  map[string]string
	dnc      map[string]struct{}
}

func NewMemorySource() *MemorySource {
	return &MemorySource{
		configs:  map[string]routing.BusinessConfig{},
		rules:    map[string][]routing.RoutingRule{},
		outbound: map[string]dialer.OutboundConfig{},
		numbers:  map[string]string{},
		dnc:      map[string]struct{}{},
	}
}

func (m *MemorySource) BusinessConfig(_ context.Context, businessID string) (routing.BusinessConfig, error) {
	if strings.TrimSpace(businessID) == "" {
		return routing.BusinessConfig{}, ErrInvalidBusiness
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if cfg, ok := m.configs[businessID]; ok {
		return cfg, nil
	}
	return DefaultConfig(businessID), nil
}

func (m *MemorySource) RoutingRules(_ context.Context, businessID string) ([]routing.RoutingRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]routing.RoutingRule(nil), m.rules[businessID]...), nil
}

func (m *MemorySource) OutboundConfig(_ context.Context, businessID string) (dialer.OutboundConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if cfg, ok := m.outbound[businessID]; ok {
		return cfg, nil
	}
	return dialer.DefaultOutboundConfig(), nil
}

func (m *MemorySource) PutConfig(_ context.Context, cfg routing.BusinessConfig) error {
	if strings.TrimSpace(cfg.BusinessID) == "" {
		return ErrInvalidBusiness
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.BusinessID] = cfg
	return nil
}

// PutRules replaces the rule set of a business. Rules are kept in priority order.
func (m *MemorySource) PutRules(_ context.Context, businessID string, rules []routing.RoutingRule) error {
	if strings.TrimSpace(businessID) == "" {
		return ErrInvalidBusiness
	}
	out := make([]routing.RoutingRule, 0, len(rules))
	for _, r := range rules {
		r.BusinessID = businessID
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[businessID] = out
	return nil
}

func (m *MemorySource) PutOutbound(_ context.Context, businessID string, cfg dialer.OutboundConfig) error {
	if strings.TrimSpace(businessID) == "" {
		return ErrInvalidBusiness
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbound[businessID] = cfg
	return nil
}

func (m *MemorySource) AssignNumber(_ context.Context, number, businessID string) error {
	n := NormalizeNumber(number)
	if n == "" || strings.TrimSpace(businessID) == "" {
		return ErrInvalidBusiness
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.numbers[n] = businessID
	return nil
}

func (m *MemorySource) ResolveNumber(_ context.Context, number string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.numbers[NormalizeNumber(number)]; ok {
		return id, nil
	}
	return "", ErrUnknownNumber
}

func (m *MemorySource) AddDNC(_ context.Context, numbers ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range numbers {
		if n = NormalizeNumber(n); n != "" {
			m.dnc[n] = struct{}{}
		}
	}
	return nil
}

func (m *MemorySource) IsOnDNCList(_ context.Context, phoneNumber string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.dnc[NormalizeNumber(phoneNumber)]
	return ok, nil
}
