package dialer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerScheduler_FiresReplacesAndCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewTimerScheduler()
	go s.Run(ctx)

	var fired, replaced, cancelled atomic.Int32

	s.Schedule("a", 10*time.Millisecond, func() { fired.Add(1) })

	s.Schedule("b", 10*time.Millisecond, func() { replaced.Add(1) })
	s.Schedule("b", 20*time.Millisecond, func() { replaced.Add(10) })

	s.Schedule("c", 20*time.Millisecond, func() { cancelled.Add(1) })
	s.Cancel("c")

	require.Eventually(t, func() bool { return fired.Load() == 1 && replaced.Load() == 10 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, int32(10), replaced.Load())
	assert.Equal(t, int32(0), cancelled.Load())
}

func TestTimerScheduler_SurvivesPanickingTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewTimerScheduler()
	go s.Run(ctx)

	var after atomic.Int32
	s.Schedule("boom", time.Millisecond, func() { panic("carrier response") })
	s.Schedule("next", 10*time.Millisecond, func() { after.Add(1) })

	require.Eventually(t, func() bool { return after.Load() == 1 }, time.Second, 5*time.Millisecond)
}
