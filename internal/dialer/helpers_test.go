package dialer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"voice-platform/internal/telephony"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type manualTask struct {
	delay time.Duration
	fn    func()
}

// manualScheduler records tasks and runs them only when the test fires them.
type manualScheduler struct {
	mu    sync.Mutex
	tasks map[string]manualTask
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{tasks: map[string]manualTask{}}
}

func (s *manualScheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[key] = manualTask{delay: delay, fn: fn}
}

func (s *manualScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, key)
}

func (s *manualScheduler) pending(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	return t.delay, ok
}

// fire runs the task under key synchronously. It reports false if none is pending.
func (s *manualScheduler) fire(key string) bool {
	s.mu.Lock()
	t, ok := s.tasks[key]
	delete(s.tasks, key)
	s.mu.Unlock()
	if !ok {
		return false
	}
	t.fn()
	return true
}

type stubCaller struct {
	mu    sync.Mutex
	reqs  []telephony.CallRequest
	fail  bool
	calls int
	delay time.Duration
}

func (s *stubCaller) MakeCall(_ context.Context, req telephony.CallRequest) telephony.CallResult {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	s.calls++
	if s.fail {
		return telephony.CallResult{Success: false, Error: "All providers failed to initiate call"}
	}
	return telephony.CallResult{Success: true, CallID: fmt.Sprintf("ext-%d", s.calls), Provider: telephony.ProviderTwilio}
}

func (s *stubCaller) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubCaller) last() telephony.CallRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reqs[len(s.reqs)-1]
}

type stubConfig struct{ cfg OutboundConfig }

func (s stubConfig) OutboundConfig(context.Context, string) (OutboundConfig, error) {
	return s.cfg, nil
}

type stubDNC map[string]bool

func (s stubDNC) IsOnDNCList(_ context.Context, phone string) (bool, error) { return s[phone], nil }

// openConfig allows any number of concurrent calls and never retries.
func openConfig() OutboundConfig {
	cfg := DefaultOutboundConfig()
	cfg.RateLimiting.MaxConcurrentCalls = 0
	cfg.RetryPolicy = RetryPolicy{}
	return cfg
}

// Wednesday 2024-01-10 15:00 UTC.
var afternoon = time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)
