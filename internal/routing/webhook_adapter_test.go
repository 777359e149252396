package routing

import (
	"context"
	"testing"

	"voice-platform/internal/telephony"
)

func TestVoiceFor(t *testing.T) {
	if vr := voiceFor("biz-1", CallResponse{Action: ActionRejected}); !vr.Reject {
		t.Fatalf("rejected call should be rejected: %+v", vr)
	}
	if vr := voiceFor("biz-1", CallResponse{Action: ActionAIAgent}); vr.Record == nil || vr.Say != fallbackPrompt {
		t.Fatalf("failed route should fall back to voicemail: %+v", vr)
	}
	vr := voiceFor("biz-1", CallResponse{Success: true, Action: ActionQueue, QueuePosition: 3})
	if vr.Enqueue != "biz-1" || vr.Say != "All of our agents are busy. You are number 3 in line." {
		t.Fatalf("unexpected queue answer: %+v", vr)
	}
	vr = voiceFor("biz-1", CallResponse{Success: true, Action: ActionTransfer, TransferTo: "+15559999999"})
	if vr.DialTo != "+15559999999" || vr.Say != transferPrompt {
		t.Fatalf("unexpected transfer answer: %+v", vr)
	}
	vr = voiceFor("biz-1", CallResponse{Success: true, Action: ActionVoicemail})
	if vr.Record == nil || vr.Record.MaxLengthSeconds != fallbackMaxSecs || !vr.Hangup {
		t.Fatalf("unexpected voicemail answer: %+v", vr)
	}
}

func TestHandleInbound_GreetsWithAgent(t *testing.T) {
	r := NewRouter(stubConfig{cfg: BusinessConfig{Voice: VoiceSettings{Greeting: "Thanks for calling"}}},
		WithAgent(&stubAgent{}), WithClock(fixedClock(wednesdayAt(10))))

	vr, err := r.HandleInbound(context.Background(), "biz-1", telephony.WebhookEvent{
		Provider: telephony.ProviderTwilio, CallID: "CA1", From: "+15551234567", To: "+15550000000",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if vr.Say != "Thanks for calling" {
		t.Fatalf("unexpected answer: %+v", vr)
	}
	calls := r.ActiveCalls("biz-1")
	if len(calls) != 1 || calls[0].Action != ActionAIAgent || calls[0].Provider != telephony.ProviderTwilio {
		t.Fatalf("unexpected tracked call: %+v", calls)
	}
}
