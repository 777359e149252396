package routing

import (
	"context"
	"fmt"

	"voice-platform/internal/telephony"
)

const (
	transferPrompt  = "Please hold while we transfer your call."
	fallbackPrompt  = "We are unable to take your call right now. Please leave a message after the tone."
	fallbackMaxSecs = 120
)

// HandleInbound implements telephony.InboundHandler: it routes the call and
// turns the outcome into a voice answer. Failed routes fall back to voicemail
// so the caller is never dropped silently.
func (r *Router) HandleInbound(ctx context.Context, businessID string, ev telephony.WebhookEvent) (telephony.VoiceResponse, error) {
	resp := r.HandleIncoming(ctx, businessID, IncomingCall{
		CallID:     ev.CallID,
		From:       ev.From,
		To:         ev.To,
		CallerName: telephony.CallerName(ev),
		Provider:   ev.Provider,
	})
	return voiceFor(businessID, resp), nil
}

func voiceFor(businessID string, resp CallResponse) telephony.VoiceResponse {
	if resp.Action == ActionRejected {
		return telephony.VoiceResponse{Reject: true}
	}
	if !resp.Success {
		return telephony.VoiceResponse{
			Say:    fallbackPrompt,
			Record: &telephony.RecordSpec{MaxLengthSeconds: fallbackMaxSecs},
			Hangup: true,
		}
	}

	switch resp.Action {
	case ActionVoicemail:
		prompt := resp.VoicemailPrompt
		if prompt == "" {
			prompt = fallbackPrompt
		}
		secs := resp.MaxVoicemailSecs
		if secs <= 0 {
			secs = fallbackMaxSecs
		}
		return telephony.VoiceResponse{
			Say:    prompt,
			Record: &telephony.RecordSpec{MaxLengthSeconds: secs},
			Hangup: true,
		}
	case ActionTransfer:
		return telephony.VoiceResponse{Say: transferPrompt, DialTo: resp.TransferTo}
	case ActionQueue:
		return telephony.VoiceResponse{
			Say:     fmt.Sprintf("All of our agents are busy. You are number %d in line.", resp.QueuePosition),
			Enqueue: businessID,
		}
	default:
		return telephony.VoiceResponse{Say: resp.Greeting}
	}
}

// HandleCallEvent implements telephony.CallEventHandler. Terminal status
// callbacks end the tracked inbound call; anything else is not ours.
func (r *Router) HandleCallEvent(ctx context.Context, ev telephony.WebhookEvent) bool {
	terminal := ev.Type == telephony.EventCallCompleted || ev.Type == telephony.EventCallFailed || ev.Status.Terminal()
	if !terminal {
		return false
	}
	return r.EndByExternalID(ctx, ev.CallID)
}
