package dialer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs fn once after delay under key. Scheduling a key that is
// already pending replaces it; Cancel drops it. Implementations guarantee at
// most one outstanding task per key.
type Scheduler interface {
	Schedule(key string, delay time.Duration, fn func())
	Cancel(key string)
}

type schedCmd struct {
	key   string
	delay time.Duration
	fn    func()
	gen   uint64
	fire  bool
}

type pendingTask struct {
	gen   uint64
	timer *time.Timer
	fn    func()
}

// TimerScheduler owns every pending timer inside one loop goroutine: Schedule,
// Cancel and timer expiry are all messages on the same channel, so a fired
// task is dropped if it was cancelled or replaced in the meantime.
type TimerScheduler struct {
	cmds chan schedCmd
	done chan struct{}

	once sync.Once
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{cmds: make(chan schedCmd, 64), done: make(chan struct{})}
}

// Run processes messages until ctx is done. Pending tasks are dropped on exit.
func (s *TimerScheduler) Run(ctx context.Context) {
	defer s.once.Do(func() { close(s.done) })

	pending := map[string]pendingTask{}
	var gen uint64
	for {
		select {
		case <-ctx.Done():
			for _, p := range pending {
				p.timer.Stop()
			}
			return
		case c := <-s.cmds:
			switch {
			case c.fire:
				p, ok := pending[c.key]
				if !ok || p.gen != c.gen {
					continue
				}
				delete(pending, c.key)
				go runTask(c.key, p.fn)
			case c.fn == nil:
				if p, ok := pending[c.key]; ok {
					p.timer.Stop()
					delete(pending, c.key)
				}
			default:
				if p, ok := pending[c.key]; ok {
					p.timer.Stop()
				}
				gen++
				key, g := c.key, gen
				pending[key] = pendingTask{
					gen: g,
					fn:  c.fn,
					timer: time.AfterFunc(c.delay, func() {
						s.send(schedCmd{key: key, gen: g, fire: true})
					}),
				}
			}
		}
	}
}

// runTask keeps a panicking campaign tick or callback from taking the
// process down with it.
func runTask(key string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduled task panicked", "component", "scheduler", "key", key, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

func (s *TimerScheduler) send(c schedCmd) {
	select {
	case s.cmds <- c:
	case <-s.done:
	}
}

func (s *TimerScheduler) Schedule(key string, delay time.Duration, fn func()) {
	if fn == nil {
		return
	}
	if delay < 0 {
		delay = 0
	}
	s.send(schedCmd{key: key, delay: delay, fn: fn})
}

func (s *TimerScheduler) Cancel(key string) {
	s.send(schedCmd{key: key})
}
