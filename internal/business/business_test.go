package business

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-platform/internal/dialer"
	"voice-platform/internal/routing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("biz-1")
	assert.Equal(t, "biz-1", cfg.BusinessID)
	assert.Equal(t, "America/New_York", cfg.BusinessHours.Timezone)
	assert.Len(t, cfg.BusinessHours.Days, 5)
	assert.NotContains(t, cfg.BusinessHours.Days, "saturday")
	assert.Equal(t, []routing.TimeSlot{{Start: "09:00", End: "17:00"}}, cfg.BusinessHours.Days["monday"])
	assert.Equal(t, routing.ActionAIAgent, cfg.Routing.DefaultAction)
	assert.Equal(t, routing.ActionQueue, cfg.Routing.OverflowHandling)
	assert.Equal(t, 300, cfg.Routing.MaxQueueTime)
	assert.Equal(t, 10, cfg.Routing.MaxQueueLength)
	assert.Equal(t, 120, cfg.Voice.MaxVoicemailDuration)
	assert.NotEmpty(t, cfg.Voice.Greeting)
	assert.NotEmpty(t, cfg.Voice.VoicemailPrompt)
}

func TestNormalizeNumber(t *testing.T) {
	assert.Equal(t, "+15550100000", NormalizeNumber(" +1 (555) 010-0000 "))
	assert.Equal(t, "15550100000", NormalizeNumber("1.555.010.0000"))
	assert.Equal(t, "1555", NormalizeNumber("1+555"))
	assert.Equal(t, "", NormalizeNumber("abc"))
}

func TestMemorySource(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySource()

	_, err := m.BusinessConfig(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalidBusiness)

	cfg, err := m.BusinessConfig(ctx, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig("biz-1"), cfg)

	cfg.Routing.DefaultAction = routing.ActionVoicemail
	require.NoError(t, m.PutConfig(ctx, cfg))
	got, _ := m.BusinessConfig(ctx, "biz-1")
	assert.Equal(t, routing.ActionVoicemail, got.Routing.DefaultAction)

	require.NoError(t, m.PutRules(ctx, "biz-1", []routing.RoutingRule{
		{ID: "low", Priority: 1},
		{ID: "high", Priority: 9},
	}))
	rules, _ := m.RoutingRules(ctx, "biz-1")
	require.Len(t, rules, 2)
	assert.Equal(t, "high", rules[0].ID)
	assert.Equal(t, "biz-1", rules[1].BusinessID)
	rules[0].ID = "mutated"
	again, _ := m.RoutingRules(ctx, "biz-1")
	assert.Equal(t, "high", again[0].ID)

	out, _ := m.OutboundConfig(ctx, "biz-1")
	assert.Equal(t, dialer.DefaultOutboundConfig(), out)

	require.NoError(t, m.AssignNumber(ctx, "+1 555 010 0000", "biz-1"))
	id, err := m.ResolveNumber(ctx, "+15550100000")
	require.NoError(t, err)
	assert.Equal(t, "biz-1", id)
	_, err = m.ResolveNumber(ctx, "+15550109999")
	assert.ErrorIs(t, err, ErrUnknownNumber)

	require.NoError(t, m.AddDNC(ctx, "+1-555-010-7777"))
	on, _ := m.IsOnDNCList(ctx, "+15550107777")
	assert.True(t, on)
	on, _ = m.IsOnDNCList(ctx, "+15550100000")
	assert.False(t, on)
}

type countingSource struct {
	mu    sync.Mutex
	calls map[string]int
	fail  bool
	inner *MemorySource
}

func newCountingSource() *countingSource {
	return &countingSource{calls: map[string]int{}, inner: NewMemorySource()}
}

func (s *countingSource) hit(kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[kind]++
	if s.fail {
		return errors.New("db down")
	}
	return nil
}

func (s *countingSource) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[kind]
}

func (s *countingSource) BusinessConfig(ctx context.Context, id string) (routing.BusinessConfig, error) {
	if err := s.hit("config"); err != nil {
		return routing.BusinessConfig{}, err
	}
	return s.inner.BusinessConfig(ctx, id)
}

func (s *countingSource) RoutingRules(ctx context.Context, id string) ([]routing.RoutingRule, error) {
	if err := s.hit("rules"); err != nil {
		return nil, err
	}
	return s.inner.RoutingRules(ctx, id)
}

func (s *countingSource) OutboundConfig(ctx context.Context, id string) (dialer.OutboundConfig, error) {
	if err := s.hit("outbound"); err != nil {
		return dialer.OutboundConfig{}, err
	}
	return s.inner.OutboundConfig(ctx, id)
}

func TestCachedSource_TTLAndInvalidate(t *testing.T) {
	ctx := context.Background()
	src := newCountingSource()
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	c, err := NewCachedSource(src, 8, WithTTL(time.Minute), WithCacheClock(func() time.Time { return now }))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.BusinessConfig(ctx, "biz-1")
		require.NoError(t, err)
		_, _ = c.RoutingRules(ctx, "biz-1")
		_, _ = c.OutboundConfig(ctx, "biz-1")
	}
	assert.Equal(t, 1, src.count("config"))
	assert.Equal(t, 1, src.count("rules"))
	assert.Equal(t, 1, src.count("outbound"))

	now = now.Add(2 * time.Minute)
	_, _ = c.BusinessConfig(ctx, "biz-1")
	assert.Equal(t, 2, src.count("config"))

	cfg := DefaultConfig("biz-1")
	cfg.Voice.Greeting = "Hello from the new config"
	require.NoError(t, src.inner.PutConfig(ctx, cfg))
	got, _ := c.BusinessConfig(ctx, "biz-1")
	assert.NotEqual(t, "Hello from the new config", got.Voice.Greeting)

	c.Invalidate("biz-1")
	got, _ = c.BusinessConfig(ctx, "biz-1")
	assert.Equal(t, "Hello from the new config", got.Voice.Greeting)
}

func TestCachedSource_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	src := newCountingSource()
	src.fail = true
	c, err := NewCachedSource(src, 0)
	require.NoError(t, err)

	_, err = c.BusinessConfig(ctx, "biz-1")
	require.Error(t, err)

	src.mu.Lock()
	src.fail = false
	src.mu.Unlock()
	_, err = c.BusinessConfig(ctx, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.count("config"))
}
