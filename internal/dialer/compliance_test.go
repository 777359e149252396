package dialer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersonalize(t *testing.T) {
	r := Recipient{Name: "Ana", CustomFields: map[string]string{"company": "Acme", "plan": "gold"}}
	assert.Equal(t, "Hi Ana from Acme, your gold plan", personalize("Hi {name} from {company}, your {plan} plan", r))
	assert.Equal(t, "Hi {name}", personalize("Hi {name}", Recipient{}))
	assert.Equal(t, "", personalize("", r))
}

func TestAllowedCallTime(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2024, 1, 10, h, m, 0, 0, time.UTC) }
	assert.True(t, allowedCallTime(at(9, 0), "UTC"))
	assert.True(t, allowedCallTime(at(20, 59), "UTC"))
	assert.False(t, allowedCallTime(at(21, 0), "UTC"))
	assert.False(t, allowedCallTime(at(8, 59), ""))
	// Recipient timezone wins over the fallback.
	assert.True(t, allowedCallTime(at(2, 0), "Asia/Tokyo", "UTC"))
	// Unknown zones fall through to the next name.
	assert.True(t, allowedCallTime(at(12, 0), "Not/AZone", "UTC"))
}

func TestCallSchedule_WithinAndNext(t *testing.T) {
	s := &CallSchedule{
		Timezone: "UTC",
		AllowedHours: map[string][]TimeSlot{
			"friday": {{Start: "13:00", End: "15:00"}, {Start: "09:00", End: "11:00"}},
		},
		BlackoutDates: []string{"2024-01-12"},
	}
	wed := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	assert.False(t, s.within(wed, ""))
	assert.False(t, s.within(time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC), ""))

	// The next Friday window after a blacked-out Friday is a week later.
	next, ok := s.nextAllowed(time.Date(2024, 1, 12, 16, 0, 0, 0, time.UTC), "")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 19, 9, 0, 0, 0, time.UTC), next.UTC())

	s.BlackoutDates = nil
	next, ok = s.nextAllowed(time.Date(2024, 1, 12, 10, 30, 0, 0, time.UTC), "")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 12, 13, 0, 0, 0, time.UTC), next.UTC())
	assert.True(t, s.within(time.Date(2024, 1, 12, 15, 0, 0, 0, time.UTC), ""))

	var none *CallSchedule
	assert.True(t, none.within(wed, ""))

	empty := &CallSchedule{}
	_, ok = empty.nextAllowed(wed, "")
	assert.False(t, ok)
}

func TestPacing(t *testing.T) {
	assert.Equal(t, 12*time.Second, pacing(5))
	assert.Equal(t, 9*time.Second, pacing(7))
	assert.Equal(t, time.Second, pacing(60))
	assert.Equal(t, 12*time.Second, pacing(0))
}

func TestMemoryLimiters(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(afternoon)
	rl := NewMemoryRateLimiter(2, clock.Now)

	var tokens []string
	for i := 0; i < 2; i++ {
		token, ok, err := rl.Reserve(ctx, "biz-1")
		require.NoError(t, err)
		require.True(t, ok)
		tokens = append(tokens, token)
	}
	_, ok, _ := rl.Reserve(ctx, "biz-1")
	assert.False(t, ok)

	// A cancelled reservation frees its slot.
	require.NoError(t, rl.Cancel(ctx, "biz-1", tokens[0]))
	_, ok, _ = rl.Reserve(ctx, "biz-1")
	assert.True(t, ok)
	_, ok, _ = rl.Reserve(ctx, "biz-1")
	assert.False(t, ok)

	clock.Advance(time.Minute)
	_, ok, _ = rl.Reserve(ctx, "biz-1")
	assert.True(t, ok)

	cc := NewMemoryConcurrency()
	ok, _ = cc.Acquire(ctx, "biz-1", 1)
	assert.True(t, ok)
	ok, _ = cc.Acquire(ctx, "biz-1", 1)
	assert.False(t, ok)
	ok, _ = cc.Acquire(ctx, "biz-2", 1)
	assert.True(t, ok)
	require.NoError(t, cc.Release(ctx, "biz-1"))
	ok, _ = cc.Acquire(ctx, "biz-1", 1)
	assert.True(t, ok)
}
