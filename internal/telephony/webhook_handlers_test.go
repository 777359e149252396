package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type stubParser struct{}

func (stubParser) ParseWebhook(p Provider, payload map[string]any) (WebhookEvent, error) {
	if p == ProviderPlivo {
		return WebhookEvent{}, errors.New("not configured")
	}
	return WebhookEvent{Provider: p, Type: EventCallInitiated, CallID: str(payload, "CallSid"), From: str(payload, "From"), To: str(payload, "To")}, nil
}

type stubInbound struct {
	business string
	ev       WebhookEvent
}

func (s *stubInbound) HandleInbound(_ context.Context, businessID string, ev WebhookEvent) (VoiceResponse, error) {
	s.business = businessID
	s.ev = ev
	return VoiceResponse{Say: "Hello", Enqueue: businessID}, nil
}

type stubOutbound struct{ callID string }

func (s stubOutbound) AnswerOutbound(_ context.Context, ev WebhookEvent) (VoiceResponse, bool) {
	if ev.CallID != s.callID {
		return VoiceResponse{}, false
	}
	return VoiceResponse{Say: "Hi from the campaign"}, true
}

type stubEvents struct {
	claim bool
	seen  int
}

func (s *stubEvents) HandleCallEvent(_ context.Context, _ WebhookEvent) bool {
	s.seen++
	return s.claim
}

func newWebhookRouter(h WebhookHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Register(r.Group("/webhooks"))
	return r
}

func postForm(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookVoice_InboundRoutedByDialedNumber(t *testing.T) {
	in := &stubInbound{}
	h := WebhookHandler{
		Parser:  stubParser{},
		Inbound: in,
		BusinessResolver: func(_ *gin.Context, to string) (string, error) {
			if to == "+15557654321" {
				return "biz-1", nil
			}
			return "", errors.New("unknown")
		},
	}
	r := newWebhookRouter(h)

	w := postForm(r, "/webhooks/twilio/voice", "CallSid=CA1&From=%2B15551234567&To=%2B15557654321")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if in.business != "biz-1" || in.ev.CallID != "CA1" {
		t.Fatalf("unexpected inbound call: %+v", in)
	}
	if !strings.Contains(w.Body.String(), "<Enqueue>biz-1</Enqueue>") {
		t.Fatalf("expected enqueue twiml, got %s", w.Body.String())
	}

	w = postForm(r, "/webhooks/twilio/voice", "CallSid=CA2&From=%2B1&To=%2B19999999999")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown destination, got %d", w.Code)
	}
}

func TestWebhookVoice_OutboundAnsweredFirst(t *testing.T) {
	in := &stubInbound{}
	h := WebhookHandler{
		Parser:           stubParser{},
		Inbound:          in,
		Outbound:         stubOutbound{callID: "CA9"},
		BusinessResolver: func(*gin.Context, string) (string, error) { return "biz-1", nil },
	}
	w := postForm(newWebhookRouter(h), "/webhooks/signalwire/voice", "CallSid=CA9&From=%2B1&To=%2B2")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if in.business != "" {
		t.Fatalf("inbound handler must not run for outbound calls")
	}
	if !strings.Contains(w.Body.String(), "Hi from the campaign") {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestWebhookStatus_StopsAtFirstClaim(t *testing.T) {
	dialer := &stubEvents{claim: true}
	router := &stubEvents{claim: true}
	h := WebhookHandler{Parser: stubParser{}, Events: []CallEventHandler{dialer, router}}

	w := postForm(newWebhookRouter(h), "/webhooks/twilio/status", "CallSid=CA1&CallStatus=completed")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if dialer.seen != 1 || router.seen != 0 {
		t.Fatalf("unexpected dispatch: dialer=%d router=%d", dialer.seen, router.seen)
	}
}

func TestWebhook_UnknownAndUnconfiguredProvider(t *testing.T) {
	r := newWebhookRouter(WebhookHandler{Parser: stubParser{}})

	if w := postForm(r, "/webhooks/vonage/status", "x=1"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown provider, got %d", w.Code)
	}
	if w := postForm(r, "/webhooks/plivo/sms-status", "x=1"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unconfigured provider, got %d", w.Code)
	}
	if w := postForm(r, "/webhooks/twilio/sms-status", "MessageSid=SM1"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestWebhookTransfer_DialsTarget(t *testing.T) {
	r := newWebhookRouter(WebhookHandler{})

	w := postForm(r, "/webhooks/twilio/transfer?to=%2B15559999999", "")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<Number>+15559999999</Number>") {
		t.Fatalf("expected dial, got %s", w.Body.String())
	}

	if w := postForm(r, "/webhooks/twilio/transfer", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without target, got %d", w.Code)
	}
}
