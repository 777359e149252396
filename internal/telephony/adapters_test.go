package telephony

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voice-platform/internal/calls"
)

func TestTwilioMakeCall_PostsFormAndParsesSid(t *testing.T) {
	var got http.Header
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC1/Calls.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = r.ParseForm()
		got = r.Header.Clone()
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sid":"CA42","status":"queued"}`))
	}))
	defer srv.Close()

	c, err := NewTwilio(CarrierConfig{
		WebhookBaseURL: "https://hooks.example.com/webhooks",
		DefaultFrom:    "+15550000000",
		Credentials:    map[string]string{"account_sid": "AC1", "auth_token": "secret"},
	}, WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	res := c.MakeCall(context.Background(), CallRequest{To: "+15551112222", MachineDetection: true})
	if !res.Success || res.CallID != "CA42" || res.Provider != ProviderTwilio {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Status != calls.StatusQueued {
		t.Fatalf("expected queued, got %s", res.Status)
	}
	if got.Get("Authorization") == "" {
		t.Fatalf("expected basic auth header")
	}
	if form["From"][0] != "+15550000000" {
		t.Fatalf("expected default from, got %v", form["From"])
	}
	if form["Url"][0] != "https://hooks.example.com/webhooks/twilio/voice" {
		t.Fatalf("unexpected voice url %v", form["Url"])
	}
	if form["Timeout"][0] != "30" {
		t.Fatalf("expected default timeout 30, got %v", form["Timeout"])
	}
	if form["MachineDetection"][0] != "Enable" {
		t.Fatalf("expected machine detection")
	}
}

func TestTwilioMakeCall_VendorErrorIsFailedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"invalid To"}`))
	}))
	defer srv.Close()

	c, _ := NewTwilio(CarrierConfig{Credentials: map[string]string{"account_sid": "AC1", "auth_token": "t"}}, WithBaseURL(srv.URL))
	res := c.MakeCall(context.Background(), CallRequest{To: "bad"})
	if res.Success {
		t.Fatalf("expected failure")
	}
	if res.Status != calls.StatusFailed || res.Error == "" {
		t.Fatalf("expected failed status with error, got %+v", res)
	}
}

func TestSignalWire_UsesSpaceURLAndOwnName(t *testing.T) {
	c, err := NewSignalWire(CarrierConfig{Credentials: map[string]string{"project_id": "p1", "auth_token": "t", "space_url": "https://acme.signalwire.com/"}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	lc := c.(*lamlCarrier)
	if lc.api.baseURL != "https://acme.signalwire.com/api/laml/2010-04-01/Accounts/p1" {
		t.Fatalf("unexpected base url %s", lc.api.baseURL)
	}
	if c.Name() != ProviderSignalWire {
		t.Fatalf("expected signalwire, got %s", c.Name())
	}
}

func TestTelnyxMakeCall_JSONBody(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/calls" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer KEY" {
			t.Errorf("expected bearer auth")
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"data":{"call_control_id":"v3:ctl"}}`))
	}))
	defer srv.Close()

	c, _ := NewTelnyx(CarrierConfig{Credentials: map[string]string{"api_key": "KEY", "connection_id": "conn"}}, WithBaseURL(srv.URL))
	res := c.MakeCall(context.Background(), CallRequest{To: "+1555", From: "+1666", Timeout: 20 * time.Second, Record: true})
	if !res.Success || res.CallID != "v3:ctl" {
		t.Fatalf("unexpected result %+v", res)
	}
	if body["connection_id"] != "conn" || body["record"] != "record-from-answer" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["timeout_secs"] != float64(20) {
		t.Fatalf("expected timeout_secs 20, got %v", body["timeout_secs"])
	}
}

func TestPlivoGetCallStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/Account/MA1/Call/uuid-1/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"call_status":"busy","call_direction":"outbound","bill_duration":0,"total_amount":"0.00000"}`))
	}))
	defer srv.Close()

	c, _ := NewPlivo(CarrierConfig{Credentials: map[string]string{"auth_id": "MA1", "auth_token": "t"}}, WithBaseURL(srv.URL))
	st, err := c.GetCallStatus(context.Background(), "uuid-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if st.Status != calls.StatusBusy || st.Direction != calls.DirectionOutbound {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestHealthProbe_FailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewTelnyx(CarrierConfig{Credentials: map[string]string{"api_key": "KEY"}}, WithBaseURL(srv.URL))
	if c.IsHealthy(context.Background()) {
		t.Fatalf("expected unhealthy")
	}
}

func TestNewCarriers_SkipsDisabledAndIncomplete(t *testing.T) {
	out := NewCarriers([]CarrierConfig{
		{Provider: ProviderTwilio, Enabled: true, Priority: 2, Credentials: map[string]string{"account_sid": "AC", "auth_token": "t"}},
		{Provider: ProviderTelnyx, Enabled: true, Priority: 1},
		{Provider: ProviderPlivo, Enabled: false, Credentials: map[string]string{"auth_id": "a", "auth_token": "t"}},
	}, nil)
	if len(out) != 1 {
		t.Fatalf("expected 1 carrier, got %d", len(out))
	}
	if out[0].Carrier.Name() != ProviderTwilio || out[0].Priority != 2 {
		t.Fatalf("unexpected carrier %+v", out[0])
	}
}
