package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"voice-platform/internal/calls"
	"voice-platform/internal/telephony"
)

// mockCarrier implements telephony.Carrier with testify/mock.
type mockCarrier struct {
	mock.Mock
	name telephony.Provider
}

func newMockCarrier(name telephony.Provider) *mockCarrier { return &mockCarrier{name: name} }

func (m *mockCarrier) Name() telephony.Provider { return m.name }

func (m *mockCarrier) MakeCall(ctx context.Context, req telephony.CallRequest) telephony.CallResult {
	args := m.Called(ctx, req)
	return args.Get(0).(telephony.CallResult)
}

func (m *mockCarrier) GetCallStatus(ctx context.Context, id string) (telephony.CallStatus, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(telephony.CallStatus), args.Error(1)
}

func (m *mockCarrier) EndCall(ctx context.Context, id string) bool {
	return m.Called(ctx, id).Bool(0)
}

func (m *mockCarrier) TransferCall(ctx context.Context, id, target string) bool {
	return m.Called(ctx, id, target).Bool(0)
}

func (m *mockCarrier) SendSMS(ctx context.Context, req telephony.SMSRequest) telephony.SMSResult {
	args := m.Called(ctx, req)
	return args.Get(0).(telephony.SMSResult)
}

func (m *mockCarrier) ListNumbers(ctx context.Context) ([]telephony.PhoneNumber, error) {
	args := m.Called(ctx)
	nums, _ := args.Get(0).([]telephony.PhoneNumber)
	return nums, args.Error(1)
}

func (m *mockCarrier) PurchaseNumber(ctx context.Context, req telephony.NumberRequest) (telephony.PhoneNumber, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(telephony.PhoneNumber), args.Error(1)
}

func (m *mockCarrier) ReleaseNumber(ctx context.Context, number string) bool {
	return m.Called(ctx, number).Bool(0)
}

func (m *mockCarrier) ParseWebhook(payload map[string]any) telephony.WebhookEvent {
	return m.Called(payload).Get(0).(telephony.WebhookEvent)
}

func (m *mockCarrier) IsHealthy(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

type recordingMetrics struct {
	attempts []string
}

func (r *recordingMetrics) CarrierAttempt(provider, op string, ok bool) {
	if ok {
		r.attempts = append(r.attempts, provider+":"+op+":ok")
		return
	}
	r.attempts = append(r.attempts, provider+":"+op+":fail")
}

func (r *recordingMetrics) CarrierHealth(string, bool) {}

func twoCarriers() (*mockCarrier, *mockCarrier, []telephony.ConfiguredCarrier) {
	tw := newMockCarrier(telephony.ProviderTwilio)
	tx := newMockCarrier(telephony.ProviderTelnyx)
	// Priority order is twilio then telnyx, regardless of slice order.
	return tw, tx, []telephony.ConfiguredCarrier{{Carrier: tx, Priority: 2}, {Carrier: tw, Priority: 1}}
}

func TestMakeCall_FailsOverAndMarksUnhealthy(t *testing.T) {
	tw, tx, carriers := twoCarriers()
	req := telephony.CallRequest{To: "+15551234567"}
	tw.On("MakeCall", mock.Anything, req).Return(telephony.CallResult{Success: false, Status: calls.StatusFailed, Error: "timeout"}).Once()
	tx.On("MakeCall", mock.Anything, req).Return(telephony.CallResult{Success: true, CallID: "v3:1", Status: calls.StatusQueued}).Once()

	m := &recordingMetrics{}
	g := New(Config{Failover: true}, carriers, WithMetrics(m))

	res := g.MakeCall(context.Background(), req)
	require.True(t, res.Success)
	assert.Equal(t, "v3:1", res.CallID)
	assert.Equal(t, telephony.ProviderTelnyx, res.Provider)
	assert.False(t, g.Health()[telephony.ProviderTwilio])
	assert.True(t, g.Health()[telephony.ProviderTelnyx])
	assert.Equal(t, []string{"twilio:make_call:fail", "telnyx:make_call:ok"}, m.attempts)

	// The unhealthy primary is skipped on the next call.
	tx.On("MakeCall", mock.Anything, req).Return(telephony.CallResult{Success: true, CallID: "v3:2"}).Once()
	res = g.MakeCall(context.Background(), req)
	assert.Equal(t, "v3:2", res.CallID)
	tw.AssertNumberOfCalls(t, "MakeCall", 1)
}

func TestMakeCall_PanickingCarrierFailsOver(t *testing.T) {
	tw, tx, carriers := twoCarriers()
	req := telephony.CallRequest{To: "+15551234567"}
	tw.On("MakeCall", mock.Anything, req).Run(func(mock.Arguments) { panic("transport blew up") }).Return(telephony.CallResult{})
	tx.On("MakeCall", mock.Anything, req).Return(telephony.CallResult{Success: true, CallID: "c-1"}).Once()

	m := &recordingMetrics{}
	g := New(Config{Failover: true}, carriers, WithMetrics(m))

	var res telephony.CallResult
	require.NotPanics(t, func() { res = g.MakeCall(context.Background(), req) })
	require.True(t, res.Success)
	assert.Equal(t, "c-1", res.CallID)
	assert.Equal(t, telephony.ProviderTelnyx, res.Provider)
	assert.False(t, g.Health()[telephony.ProviderTwilio])
	assert.Equal(t, []string{"twilio:make_call:fail", "telnyx:make_call:ok"}, m.attempts)

	// A direct call on the panicking carrier reports failure instead of crashing.
	res = g.MakeCallWithProvider(context.Background(), telephony.ProviderTwilio, req)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "transport blew up")
}

func TestSendSMS_PanickingCarrierFailsOver(t *testing.T) {
	tw, tx, carriers := twoCarriers()
	req := telephony.SMSRequest{To: "+15551234567", Body: "hi"}
	tw.On("SendSMS", mock.Anything, req).Run(func(mock.Arguments) { panic("bad payload") }).Return(telephony.SMSResult{})
	tx.On("SendSMS", mock.Anything, req).Return(telephony.SMSResult{Success: true, MessageID: "m-1"}).Once()

	g := New(Config{Failover: true}, carriers)

	var res telephony.SMSResult
	require.NotPanics(t, func() { res = g.SendSMS(context.Background(), req) })
	require.True(t, res.Success)
	assert.Equal(t, telephony.ProviderTelnyx, res.Provider)
	assert.False(t, g.Health()[telephony.ProviderTwilio])
}

func TestMakeCall_Exhaustion(t *testing.T) {
	tw, tx, carriers := twoCarriers()
	tw.On("MakeCall", mock.Anything, mock.Anything).Return(telephony.CallResult{Success: false, Error: "down"})
	tx.On("MakeCall", mock.Anything, mock.Anything).Return(telephony.CallResult{Success: false, Error: "down"})

	g := New(Config{Failover: true}, carriers)
	res := g.MakeCall(context.Background(), telephony.CallRequest{To: "+1"})
	assert.False(t, res.Success)
	assert.Equal(t, "All providers failed to initiate call", res.Error)
	assert.Equal(t, calls.StatusFailed, res.Status)
}

func TestMakeCall_NoCarriers(t *testing.T) {
	g := New(Config{Failover: true}, nil)
	res := g.MakeCall(context.Background(), telephony.CallRequest{To: "+1"})
	assert.False(t, res.Success)
	assert.Equal(t, "All providers failed to initiate call", res.Error)
}

func TestMakeCall_FailoverDisabledTriesPrimaryOnly(t *testing.T) {
	tw, tx, carriers := twoCarriers()
	tw.On("MakeCall", mock.Anything, mock.Anything).Return(telephony.CallResult{Success: false, Error: "busy"})

	g := New(Config{Failover: false}, carriers)
	res := g.MakeCall(context.Background(), telephony.CallRequest{To: "+1"})
	assert.False(t, res.Success)
	tx.AssertNotCalled(t, "MakeCall", mock.Anything, mock.Anything)
}

func TestMakeCall_ConfiguredPrimaryGoesFirst(t *testing.T) {
	tw, tx, carriers := twoCarriers()
	tx.On("MakeCall", mock.Anything, mock.Anything).Return(telephony.CallResult{Success: true, CallID: "v3:9"})

	g := New(Config{Failover: true, Primary: telephony.ProviderTelnyx}, carriers)
	res := g.MakeCall(context.Background(), telephony.CallRequest{To: "+1"})
	assert.Equal(t, telephony.ProviderTelnyx, res.Provider)
	tw.AssertNotCalled(t, "MakeCall", mock.Anything, mock.Anything)
}

func TestMakeCallWithProvider(t *testing.T) {
	tw, _, carriers := twoCarriers()
	tw.On("MakeCall", mock.Anything, mock.Anything).Return(telephony.CallResult{Success: true, CallID: "CA1"})

	g := New(Config{}, carriers)
	res := g.MakeCallWithProvider(context.Background(), telephony.ProviderPlivo, telephony.CallRequest{To: "+1"})
	assert.False(t, res.Success)
	assert.Equal(t, "Provider plivo not configured", res.Error)

	res = g.MakeCallWithProvider(context.Background(), telephony.ProviderTwilio, telephony.CallRequest{To: "+1"})
	assert.True(t, res.Success)
	assert.Equal(t, telephony.ProviderTwilio, res.Provider)
}

func TestSendSMS_Exhaustion(t *testing.T) {
	tw, tx, carriers := twoCarriers()
	tw.On("SendSMS", mock.Anything, mock.Anything).Return(telephony.SMSResult{Success: false, Error: "x"})
	tx.On("SendSMS", mock.Anything, mock.Anything).Return(telephony.SMSResult{Success: false, Error: "y"})

	g := New(Config{Failover: true}, carriers)
	res := g.SendSMS(context.Background(), telephony.SMSRequest{To: "+1", Body: "hi"})
	assert.False(t, res.Success)
	assert.Equal(t, "All providers failed to send SMS", res.Error)
}

func TestCheckHealth_RestoresCarrier(t *testing.T) {
	tw, tx, carriers := twoCarriers()
	tw.On("MakeCall", mock.Anything, mock.Anything).Return(telephony.CallResult{Success: false, Error: "x"}).Once()
	tx.On("MakeCall", mock.Anything, mock.Anything).Return(telephony.CallResult{Success: true, CallID: "v3"}).Once()
	tw.On("IsHealthy", mock.Anything).Return(true)
	tx.On("IsHealthy", mock.Anything).Return(false)

	g := New(Config{Failover: true}, carriers)
	g.MakeCall(context.Background(), telephony.CallRequest{To: "+1"})
	require.False(t, g.Health()[telephony.ProviderTwilio])

	snap := g.CheckHealth(context.Background())
	assert.True(t, snap[telephony.ProviderTwilio])
	assert.False(t, snap[telephony.ProviderTelnyx])
}

func TestCheckHealth_PanickingProbeIsUnhealthy(t *testing.T) {
	tw, tx, carriers := twoCarriers()
	tw.On("IsHealthy", mock.Anything).Run(func(mock.Arguments) { panic("nil response") }).Return(true)
	tx.On("IsHealthy", mock.Anything).Return(true)

	g := New(Config{Failover: true}, carriers)
	snap := g.CheckHealth(context.Background())
	assert.False(t, snap[telephony.ProviderTwilio])
	assert.True(t, snap[telephony.ProviderTelnyx])
}

func TestTargetedOperations(t *testing.T) {
	tw, tx, carriers := twoCarriers()
	tw.On("EndCall", mock.Anything, "c1").Return(false)
	tx.On("EndCall", mock.Anything, "c1").Return(true)
	tw.On("GetCallStatus", mock.Anything, "c1").Return(telephony.CallStatus{}, errors.New("404"))
	tx.On("GetCallStatus", mock.Anything, "c1").Return(telephony.CallStatus{CallID: "c1", Status: calls.StatusInProgress}, nil)

	g := New(Config{}, carriers)
	ctx := context.Background()

	assert.True(t, g.EndCall(ctx, "c1", ""))
	assert.False(t, g.EndCall(ctx, "c1", telephony.ProviderPlivo))

	st, err := g.GetCallStatus(ctx, "c1", "")
	require.NoError(t, err)
	assert.Equal(t, calls.StatusInProgress, st.Status)

	_, err = g.GetCallStatus(ctx, "c1", telephony.ProviderPlivo)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestListAndPurchaseNumbers(t *testing.T) {
	tw, tx, carriers := twoCarriers()
	tw.On("ListNumbers", mock.Anything).Return([]telephony.PhoneNumber{{Number: "+1", Provider: telephony.ProviderTwilio}}, nil)
	tx.On("ListNumbers", mock.Anything).Return(nil, errors.New("unauthorized"))
	tw.On("PurchaseNumber", mock.Anything, telephony.NumberRequest{AreaCode: "415"}).Return(telephony.PhoneNumber{Number: "+14155550100"}, nil)

	g := New(Config{}, carriers)
	nums, err := g.ListNumbers(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, nums, 1)

	n, err := g.PurchaseNumber(context.Background(), telephony.NumberRequest{AreaCode: "415"}, "")
	require.NoError(t, err)
	assert.Equal(t, "+14155550100", n.Number)
}

func TestCostRanking_HealthyOnly(t *testing.T) {
	_, _, carriers := twoCarriers()
	pl := newMockCarrier(telephony.ProviderPlivo)
	carriers = append(carriers, telephony.ConfiguredCarrier{Carrier: pl, Priority: 3})
	g := New(Config{}, carriers)

	cheapest, ok := g.CheapestProvider()
	require.True(t, ok)
	assert.Equal(t, telephony.ProviderTelnyx, cheapest)

	est := g.EstimateCallCost(10)
	require.Len(t, est, 3)
	assert.Equal(t, "telnyx", est[0].Provider)
	assert.InDelta(t, 0.06, est[0].Cost, 1e-9)
	assert.Equal(t, "plivo", est[1].Provider)
	assert.Equal(t, "twilio", est[2].Provider)

	g.setHealth(telephony.ProviderTelnyx, false)
	cheapest, _ = g.CheapestProvider()
	assert.Equal(t, telephony.ProviderPlivo, cheapest)
	assert.Len(t, g.EstimateCallCost(1), 2)

	rate, ok := g.ProviderCost(telephony.ProviderTwilio)
	assert.True(t, ok)
	assert.Equal(t, 0.013, rate)
	_, ok = g.ProviderCost(telephony.ProviderSignalWire)
	assert.False(t, ok)
}

func TestSetPrimaryAndProviders(t *testing.T) {
	_, _, carriers := twoCarriers()
	g := New(Config{}, carriers)

	assert.Equal(t, telephony.ProviderTwilio, g.Primary())
	assert.ErrorIs(t, g.SetPrimary(telephony.ProviderPlivo), ErrProviderNotConfigured)
	require.NoError(t, g.SetPrimary(telephony.ProviderTelnyx))

	infos := g.Providers()
	require.Len(t, infos, 2)
	assert.Equal(t, telephony.ProviderTwilio, infos[0].Name)
	assert.False(t, infos[0].Primary)
	assert.True(t, infos[1].Primary)

	g.SetFailover(true)
	assert.True(t, g.FailoverEnabled())
}

func TestParseWebhook_UnconfiguredProvider(t *testing.T) {
	tw, _, carriers := twoCarriers()
	tw.On("ParseWebhook", mock.Anything).Return(telephony.WebhookEvent{Provider: telephony.ProviderTwilio, CallID: "CA1"})
	g := New(Config{}, carriers)

	ev, err := g.ParseWebhook(telephony.ProviderTwilio, map[string]any{"CallSid": "CA1"})
	require.NoError(t, err)
	assert.Equal(t, "CA1", ev.CallID)

	_, err = g.ParseWebhook(telephony.ProviderPlivo, nil)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}
