package telephony

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"voice-platform/internal/calls"
)

// lamlCarrier implements the Twilio REST dialect (2010-04-01 API).
// SignalWire exposes the same dialect under its own space, so both
// adapters share this type and differ only in base URL and name.
type lamlCarrier struct {
	cfg CarrierConfig
	api *apiClient
	log *slog.Logger
	now func() time.Time
}

// NewTwilio builds the Twilio adapter. Requires account_sid and auth_token.
func NewTwilio(cfg CarrierConfig, opts ...Option) (Carrier, error) {
	cfg.Provider = ProviderTwilio
	if err := cfg.require("account_sid", "auth_token"); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	sid := cfg.credential("account_sid")
	base := o.baseURL
	if base == "" {
		base = "https://api.twilio.com"
	}
	return newLaML(cfg, o, base+"/2010-04-01/Accounts/"+sid, sid, cfg.credential("auth_token")), nil
}

func newLaML(cfg CarrierConfig, o options, base, user, pass string) *lamlCarrier {
	log := o.logger.With("provider", string(cfg.Provider))
	return &lamlCarrier{
		cfg: cfg,
		api: &apiClient{
			provider: cfg.Provider,
			baseURL:  base,
			http:     o.httpClient,
			auth:     basicAuth(user, pass),
			log:      log,
		},
		log: log,
		now: o.now,
	}
}

func (c *lamlCarrier) Name() Provider { return c.cfg.Provider }

type lamlCall struct {
	Sid       string `json:"sid"`
	Status    string `json:"status"`
	Direction string `json:"direction"`
	From      string `json:"from"`
	To        string `json:"to"`
	Duration  string `json:"duration"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Price     string `json:"price"`
}

func (c *lamlCarrier) MakeCall(ctx context.Context, req CallRequest) CallResult {
	from := req.From
	if from == "" {
		from = c.cfg.DefaultFrom
	}
	voiceURL := req.WebhookURL
	if voiceURL == "" {
		voiceURL = c.cfg.webhook("voice")
	}
	statusURL := req.StatusCallbackURL
	if statusURL == "" {
		statusURL = c.cfg.webhook("status")
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", from)
	form.Set("Url", voiceURL)
	form.Set("Method", http.MethodPost)
	form.Set("Timeout", strconv.Itoa(int(timeout.Seconds())))
	form.Set("StatusCallback", statusURL)
	form.Set("StatusCallbackMethod", http.MethodPost)
	for _, ev := range []string{"initiated", "ringing", "answered", "completed"} {
		form.Add("StatusCallbackEvent", ev)
	}
	if req.MachineDetection {
		form.Set("MachineDetection", "Enable")
	}
	if req.Record {
		form.Set("Record", "true")
	}

	var out lamlCall
	if err := c.api.form(ctx, http.MethodPost, "/Calls.json", form, &out); err != nil {
		c.log.Warn("make call failed", "to", req.To, "err", err)
		return CallResult{Success: false, Provider: c.cfg.Provider, Status: calls.StatusFailed, Error: err.Error()}
	}
	return CallResult{Success: true, CallID: out.Sid, Provider: c.cfg.Provider, Status: lamlStatus(out.Status)}
}

func (c *lamlCarrier) GetCallStatus(ctx context.Context, callID string) (CallStatus, error) {
	var out lamlCall
	if err := c.api.do(ctx, http.MethodGet, "/Calls/"+url.PathEscape(callID)+".json", nil, "", &out); err != nil {
		return CallStatus{}, err
	}
	st := CallStatus{
		CallID:    out.Sid,
		Provider:  c.cfg.Provider,
		Status:    lamlStatus(out.Status),
		Direction: calls.DirectionOutbound,
		From:      out.From,
		To:        out.To,
		StartTime: parseLaMLTime(out.StartTime),
		EndTime:   parseLaMLTime(out.EndTime),
	}
	if strings.HasPrefix(out.Direction, "inbound") {
		st.Direction = calls.DirectionInbound
	}
	if d, err := strconv.Atoi(out.Duration); err == nil {
		st.DurationSeconds = d
	}
	if p, err := strconv.ParseFloat(out.Price, 64); err == nil {
		// Prices are reported as negative debits.
		if p < 0 {
			p = -p
		}
		st.Cost = p
	}
	return st, nil
}

func (c *lamlCarrier) EndCall(ctx context.Context, callID string) bool {
	form := url.Values{"Status": {"completed"}}
	if err := c.api.form(ctx, http.MethodPost, "/Calls/"+url.PathEscape(callID)+".json", form, nil); err != nil {
		c.log.Warn("end call failed", "call_id", callID, "err", err)
		return false
	}
	return true
}

func (c *lamlCarrier) TransferCall(ctx context.Context, callID, target string) bool {
	form := url.Values{}
	form.Set("Url", c.cfg.webhook("transfer")+"?to="+url.QueryEscape(target))
	form.Set("Method", http.MethodPost)
	if err := c.api.form(ctx, http.MethodPost, "/Calls/"+url.PathEscape(callID)+".json", form, nil); err != nil {
		c.log.Warn("transfer call failed", "call_id", callID, "err", err)
		return false
	}
	return true
}

func (c *lamlCarrier) SendSMS(ctx context.Context, req SMSRequest) SMSResult {
	from := req.From
	if from == "" {
		from = c.cfg.DefaultFrom
	}
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", from)
	form.Set("Body", req.Body)
	for _, m := range req.MediaURLs {
		form.Add("MediaUrl", m)
	}
	cb := req.StatusCallbackURL
	if cb == "" {
		cb = c.cfg.webhook("sms-status")
	}
	form.Set("StatusCallback", cb)

	var out struct {
		Sid    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := c.api.form(ctx, http.MethodPost, "/Messages.json", form, &out); err != nil {
		c.log.Warn("send sms failed", "to", req.To, "err", err)
		return SMSResult{Success: false, Provider: c.cfg.Provider, Status: SMSStatusFailed, Error: err.Error()}
	}
	return SMSResult{Success: true, MessageID: out.Sid, Provider: c.cfg.Provider, Status: lamlSMSStatus(out.Status)}
}

type lamlNumber struct {
	Sid          string `json:"sid"`
	PhoneNumber  string `json:"phone_number"`
	FriendlyName string `json:"friendly_name"`
	Capabilities struct {
		Voice bool `json:"voice"`
		SMS   bool `json:"sms"`
		MMS   bool `json:"mms"`
	} `json:"capabilities"`
}

func (c *lamlCarrier) toPhoneNumber(n lamlNumber) PhoneNumber {
	return PhoneNumber{
		Number:       n.PhoneNumber,
		ProviderID:   n.Sid,
		Provider:     c.cfg.Provider,
		FriendlyName: n.FriendlyName,
		Voice:        n.Capabilities.Voice,
		SMS:          n.Capabilities.SMS,
		MMS:          n.Capabilities.MMS,
	}
}

func (c *lamlCarrier) listNumbers(ctx context.Context, query url.Values) ([]lamlNumber, error) {
	path := "/IncomingPhoneNumbers.json"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var out struct {
		Numbers []lamlNumber `json:"incoming_phone_numbers"`
	}
	if err := c.api.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return out.Numbers, nil
}

func (c *lamlCarrier) ListNumbers(ctx context.Context) ([]PhoneNumber, error) {
	nums, err := c.listNumbers(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]PhoneNumber, 0, len(nums))
	for _, n := range nums {
		out = append(out, c.toPhoneNumber(n))
	}
	return out, nil
}

func (c *lamlCarrier) PurchaseNumber(ctx context.Context, req NumberRequest) (PhoneNumber, error) {
	form := url.Values{}
	switch {
	case req.Number != "":
		form.Set("PhoneNumber", req.Number)
	case req.AreaCode != "":
		form.Set("AreaCode", req.AreaCode)
	default:
		return PhoneNumber{}, fmt.Errorf("telephony: %s purchase needs a number or area code", c.cfg.Provider)
	}
	form.Set("VoiceUrl", c.cfg.webhook("voice"))
	form.Set("SmsUrl", c.cfg.webhook("sms"))

	var out lamlNumber
	if err := c.api.form(ctx, http.MethodPost, "/IncomingPhoneNumbers.json", form, &out); err != nil {
		return PhoneNumber{}, err
	}
	return c.toPhoneNumber(out), nil
}

func (c *lamlCarrier) ReleaseNumber(ctx context.Context, number string) bool {
	nums, err := c.listNumbers(ctx, url.Values{"PhoneNumber": {number}})
	if err != nil || len(nums) == 0 {
		c.log.Warn("release number lookup failed", "number", number, "err", err)
		return false
	}
	if err := c.api.do(ctx, http.MethodDelete, "/IncomingPhoneNumbers/"+url.PathEscape(nums[0].Sid)+".json", nil, "", nil); err != nil {
		c.log.Warn("release number failed", "number", number, "err", err)
		return false
	}
	return true
}

func (c *lamlCarrier) ParseWebhook(payload map[string]any) WebhookEvent {
	raw := str(payload, "CallStatus", "MessageStatus")
	ev := WebhookEvent{
		Provider:   c.cfg.Provider,
		Type:       lamlEvent(raw),
		CallID:     str(payload, "CallSid"),
		MessageID:  str(payload, "MessageSid", "SmsSid"),
		From:       strings.TrimSpace(str(payload, "From")),
		To:         strings.TrimSpace(str(payload, "To")),
		Timestamp:  c.now().UTC(),
		RawPayload: payload,
	}
	if ev.MessageID != "" && ev.CallID == "" {
		switch raw {
		case "":
			ev.Type = EventSMSReceived
		case "failed", "undelivered":
			ev.Type = EventSMSFailed
		}
	}
	if s := str(payload, "CallStatus"); s != "" {
		ev.Status = lamlStatus(s)
	}
	switch ab := str(payload, "AnsweredBy"); {
	case strings.HasPrefix(ab, "machine"), ab == "fax":
		ev.AnsweredBy = "machine"
	case ab == "human":
		ev.AnsweredBy = "human"
	}
	return ev
}

func (c *lamlCarrier) IsHealthy(ctx context.Context) bool {
	return c.api.do(ctx, http.MethodGet, "/Calls.json?PageSize=1", nil, "", nil) == nil
}

var lamlStatusTable = map[string]calls.Status{
	"queued":      calls.StatusQueued,
	"initiated":   calls.StatusQueued,
	"ringing":     calls.StatusRinging,
	"in-progress": calls.StatusInProgress,
	"completed":   calls.StatusCompleted,
	"busy":        calls.StatusBusy,
	"no-answer":   calls.StatusNoAnswer,
	"failed":      calls.StatusFailed,
	"canceled":    calls.StatusCanceled,
}

func lamlStatus(s string) calls.Status {
	if st, ok := lamlStatusTable[strings.ToLower(s)]; ok {
		return st
	}
	return calls.StatusFailed
}

var lamlEventTable = map[string]EventType{
	"initiated":   EventCallInitiated,
	"queued":      EventCallInitiated,
	"ringing":     EventCallRinging,
	"in-progress": EventCallAnswered,
	"answered":    EventCallAnswered,
	"completed":   EventCallCompleted,
	"failed":      EventCallFailed,
	"busy":        EventCallFailed,
	"no-answer":   EventCallFailed,
	"canceled":    EventCallFailed,
	"delivered":   EventSMSDelivered,
	"sent":        EventSMSDelivered,
	"received":    EventSMSReceived,
}

func lamlEvent(s string) EventType {
	if e, ok := lamlEventTable[strings.ToLower(s)]; ok {
		return e
	}
	return EventCallInitiated
}

func lamlSMSStatus(s string) SMSStatus {
	switch strings.ToLower(s) {
	case "sent", "sending":
		return SMSStatusSent
	case "delivered":
		return SMSStatusDelivered
	case "failed", "undelivered":
		return SMSStatusFailed
	default:
		return SMSStatusQueued
	}
}

func parseLaMLTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC1123Z, s)
	if err != nil {
		return nil
	}
	return &t
}
