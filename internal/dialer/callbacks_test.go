package dialer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleCallback_ImmediateAndDeferred(t *testing.T) {
	f := newFixture(t, openConfig())
	ctx := context.Background()

	now, err := f.d.ScheduleCallback(ctx, "biz-1", CallbackRequest{PhoneNumber: "+15551234567", Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, CallbackCompleted, now.Status)
	assert.NotEmpty(t, now.SessionID)
	require.NotNil(t, now.ProcessedAt)
	assert.Equal(t, 1, f.caller.count())

	later := afternoon.Add(90 * time.Minute)
	cb, err := f.d.ScheduleCallback(ctx, "biz-1", CallbackRequest{PhoneNumber: "+15557654321", PreferredTime: &later})
	require.NoError(t, err)
	assert.Equal(t, CallbackPending, cb.Status)
	assert.Equal(t, 1, f.caller.count())

	delay, ok := f.sched.pending(callbackKey(cb.ID))
	require.True(t, ok)
	assert.Equal(t, 90*time.Minute, delay)

	require.True(t, f.sched.fire(callbackKey(cb.ID)))
	got, err := f.d.GetCallback(ctx, "biz-1", cb.ID)
	require.NoError(t, err)
	assert.Equal(t, CallbackCompleted, got.Status)
	assert.Equal(t, 2, f.caller.count())

	all, err := f.d.Callbacks(ctx, "biz-1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestHandleCallbacks_FailureRecorded(t *testing.T) {
	f := newFixture(t, openConfig(), WithDNC(stubDNC{"+15550000000": true}))
	ctx := context.Background()

	out, err := f.d.HandleCallbacks(ctx, "biz-1", []CallbackRequest{
		{PhoneNumber: "+15550000000"},
		{PhoneNumber: "+15551234567"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, CallbackFailed, out[0].Status)
	assert.Equal(t, ErrDoNotCall.Error(), out[0].Error)
	assert.Equal(t, CallbackCompleted, out[1].Status)
	assert.Equal(t, 1, f.caller.count())
}
