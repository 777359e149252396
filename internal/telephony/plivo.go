package telephony

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"voice-platform/internal/calls"
)

var ErrNoNumberAvailable = errors.New("telephony: no number available")

// plivoCarrier talks to the Plivo v1 REST API (JSON bodies, basic auth).
type plivoCarrier struct {
	cfg CarrierConfig
	api *apiClient
	log *slog.Logger
	now func() time.Time
}

// NewPlivo builds the Plivo adapter. Requires auth_id and auth_token.
func NewPlivo(cfg CarrierConfig, opts ...Option) (Carrier, error) {
	cfg.Provider = ProviderPlivo
	if err := cfg.require("auth_id", "auth_token"); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	authID := cfg.credential("auth_id")
	base := o.baseURL
	if base == "" {
		base = "https://api.plivo.com"
	}
	log := o.logger.With("provider", string(cfg.Provider))
	return &plivoCarrier{
		cfg: cfg,
		api: &apiClient{
			provider: cfg.Provider,
			baseURL:  base + "/v1/Account/" + authID,
			http:     o.httpClient,
			auth:     basicAuth(authID, cfg.credential("auth_token")),
			log:      log,
		},
		log: log,
		now: o.now,
	}, nil
}

func (c *plivoCarrier) Name() Provider { return ProviderPlivo }

func (c *plivoCarrier) MakeCall(ctx context.Context, req CallRequest) CallResult {
	from := req.From
	if from == "" {
		from = c.cfg.DefaultFrom
	}
	answer := req.WebhookURL
	if answer == "" {
		answer = c.cfg.webhook("answer")
	}
	hangup := req.StatusCallbackURL
	if hangup == "" {
		hangup = c.cfg.webhook("status")
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	body := map[string]any{
		"from":          from,
		"to":            req.To,
		"answer_url":    answer,
		"answer_method": http.MethodPost,
		"hangup_url":    hangup,
		"ring_timeout":  int(timeout.Seconds()),
	}
	if req.MachineDetection {
		body["machine_detection"] = "true"
		body["machine_detection_url"] = hangup
	}
	if req.Record {
		body["record"] = true
	}

	var out struct {
		RequestUUID any `json:"request_uuid"`
	}
	if err := c.api.json(ctx, http.MethodPost, "/Call/", body, &out); err != nil {
		c.log.Warn("make call failed", "to", req.To, "err", err)
		return CallResult{Success: false, Provider: ProviderPlivo, Status: calls.StatusFailed, Error: err.Error()}
	}
	// request_uuid is a string for single destinations and a list for bulk calls.
	id := str(map[string]any{"id": out.RequestUUID}, "id")
	return CallResult{Success: true, CallID: id, Provider: ProviderPlivo, Status: calls.StatusQueued}
}

func (c *plivoCarrier) GetCallStatus(ctx context.Context, callID string) (CallStatus, error) {
	var out struct {
		CallUUID       string `json:"call_uuid"`
		CallStatus     string `json:"call_status"`
		CallState      string `json:"call_state"`
		CallDirection  string `json:"call_direction"`
		FromNumber     string `json:"from_number"`
		ToNumber       string `json:"to_number"`
		BillDuration   int    `json:"bill_duration"`
		TotalAmount    string `json:"total_amount"`
		InitiationTime string `json:"initiation_time"`
		EndTime        string `json:"end_time"`
	}
	if err := c.api.do(ctx, http.MethodGet, "/Call/"+url.PathEscape(callID)+"/", nil, "", &out); err != nil {
		return CallStatus{}, err
	}
	raw := out.CallStatus
	if raw == "" {
		raw = out.CallState
	}
	st := CallStatus{
		CallID:          callID,
		Provider:        ProviderPlivo,
		Status:          plivoStatus(raw),
		Direction:       calls.DirectionOutbound,
		From:            out.FromNumber,
		To:              out.ToNumber,
		DurationSeconds: out.BillDuration,
		StartTime:       parsePlivoTime(out.InitiationTime),
		EndTime:         parsePlivoTime(out.EndTime),
	}
	if out.CallDirection == "inbound" {
		st.Direction = calls.DirectionInbound
	}
	if v, err := strconv.ParseFloat(out.TotalAmount, 64); err == nil {
		st.Cost = v
	}
	return st, nil
}

func (c *plivoCarrier) EndCall(ctx context.Context, callID string) bool {
	if err := c.api.do(ctx, http.MethodDelete, "/Call/"+url.PathEscape(callID)+"/", nil, "", nil); err != nil {
		c.log.Warn("end call failed", "call_id", callID, "err", err)
		return false
	}
	return true
}

func (c *plivoCarrier) TransferCall(ctx context.Context, callID, target string) bool {
	body := map[string]any{
		"legs":        "aleg",
		"aleg_url":    c.cfg.webhook("transfer") + "?to=" + url.QueryEscape(target),
		"aleg_method": http.MethodPost,
	}
	if err := c.api.json(ctx, http.MethodPost, "/Call/"+url.PathEscape(callID)+"/", body, nil); err != nil {
		c.log.Warn("transfer call failed", "call_id", callID, "err", err)
		return false
	}
	return true
}

func (c *plivoCarrier) SendSMS(ctx context.Context, req SMSRequest) SMSResult {
	from := req.From
	if from == "" {
		from = c.cfg.DefaultFrom
	}
	cb := req.StatusCallbackURL
	if cb == "" {
		cb = c.cfg.webhook("sms-status")
	}
	body := map[string]any{
		"src":  from,
		"dst":  req.To,
		"text": req.Body,
		"url":  cb,
	}
	if len(req.MediaURLs) > 0 {
		body["type"] = "mms"
		body["media_urls"] = req.MediaURLs
	}
	var out struct {
		MessageUUID []string `json:"message_uuid"`
	}
	if err := c.api.json(ctx, http.MethodPost, "/Message/", body, &out); err != nil {
		c.log.Warn("send sms failed", "to", req.To, "err", err)
		return SMSResult{Success: false, Provider: ProviderPlivo, Status: SMSStatusFailed, Error: err.Error()}
	}
	res := SMSResult{Success: true, Provider: ProviderPlivo, Status: SMSStatusQueued}
	if len(out.MessageUUID) > 0 {
		res.MessageID = out.MessageUUID[0]
	}
	return res
}

func (c *plivoCarrier) ListNumbers(ctx context.Context) ([]PhoneNumber, error) {
	var out struct {
		Objects []struct {
			Number            string `json:"number"`
			Alias             string `json:"alias"`
			VoiceEnabled      bool   `json:"voice_enabled"`
			SMSEnabled        bool   `json:"sms_enabled"`
			MMSEnabled        bool   `json:"mms_enabled"`
			MonthlyRentalRate string `json:"monthly_rental_rate"`
		} `json:"objects"`
	}
	if err := c.api.do(ctx, http.MethodGet, "/Number/", nil, "", &out); err != nil {
		return nil, err
	}
	nums := make([]PhoneNumber, 0, len(out.Objects))
	for _, o := range out.Objects {
		pn := PhoneNumber{
			Number:       o.Number,
			ProviderID:   o.Number,
			Provider:     ProviderPlivo,
			FriendlyName: o.Alias,
			Voice:        o.VoiceEnabled,
			SMS:          o.SMSEnabled,
			MMS:          o.MMSEnabled,
		}
		if v, err := strconv.ParseFloat(o.MonthlyRentalRate, 64); err == nil {
			pn.MonthlyCost = v
		}
		nums = append(nums, pn)
	}
	return nums, nil
}

func (c *plivoCarrier) PurchaseNumber(ctx context.Context, req NumberRequest) (PhoneNumber, error) {
	number := strings.TrimPrefix(req.Number, "+")
	if number == "" {
		q := url.Values{}
		country := req.Country
		if country == "" {
			country = "US"
		}
		q.Set("country_iso", country)
		q.Set("limit", "1")
		if req.AreaCode != "" {
			q.Set("pattern", req.AreaCode)
		}
		var search struct {
			Objects []struct {
				Number string `json:"number"`
			} `json:"objects"`
		}
		if err := c.api.do(ctx, http.MethodGet, "/PhoneNumber/?"+q.Encode(), nil, "", &search); err != nil {
			return PhoneNumber{}, err
		}
		if len(search.Objects) == 0 {
			return PhoneNumber{}, ErrNoNumberAvailable
		}
		number = search.Objects[0].Number
	}
	var out struct {
		Numbers []struct {
			Number string `json:"number"`
			Status string `json:"status"`
		} `json:"numbers"`
	}
	if err := c.api.json(ctx, http.MethodPost, "/PhoneNumber/"+url.PathEscape(number)+"/", map[string]any{}, &out); err != nil {
		return PhoneNumber{}, err
	}
	if len(out.Numbers) > 0 && out.Numbers[0].Number != "" {
		number = out.Numbers[0].Number
	}
	return PhoneNumber{Number: number, ProviderID: number, Provider: ProviderPlivo, Voice: true, SMS: true}, nil
}

func (c *plivoCarrier) ReleaseNumber(ctx context.Context, number string) bool {
	n := strings.TrimPrefix(number, "+")
	if err := c.api.do(ctx, http.MethodDelete, "/Number/"+url.PathEscape(n)+"/", nil, "", nil); err != nil {
		c.log.Warn("release number failed", "number", number, "err", err)
		return false
	}
	return true
}

func (c *plivoCarrier) ParseWebhook(payload map[string]any) WebhookEvent {
	ev := WebhookEvent{
		Provider:   ProviderPlivo,
		Type:       plivoEvent(str(payload, "Event", "Status")),
		CallID:     str(payload, "CallUUID", "RequestUUID"),
		MessageID:  str(payload, "MessageUUID"),
		From:       str(payload, "From"),
		To:         str(payload, "To"),
		Timestamp:  c.now().UTC(),
		RawPayload: payload,
	}
	if s := str(payload, "CallStatus"); s != "" {
		ev.Status = plivoStatus(s)
		if ev.Type == EventCallCompleted && ev.Status != calls.StatusCompleted {
			ev.Type = EventCallFailed
		}
	}
	if m := strings.ToLower(str(payload, "Machine")); m != "" {
		ev.AnsweredBy = "human"
		if m == "true" {
			ev.AnsweredBy = "machine"
		}
	}
	return ev
}

func (c *plivoCarrier) IsHealthy(ctx context.Context) bool {
	return c.api.do(ctx, http.MethodGet, "/", nil, "", nil) == nil
}

var plivoStatusTable = map[string]calls.Status{
	"queued":      calls.StatusQueued,
	"ringing":     calls.StatusRinging,
	"in-progress": calls.StatusInProgress,
	"completed":   calls.StatusCompleted,
	"busy":        calls.StatusBusy,
	"no-answer":   calls.StatusNoAnswer,
	"timeout":     calls.StatusNoAnswer,
	"failed":      calls.StatusFailed,
	"canceled":    calls.StatusCanceled,
	"cancel":      calls.StatusCanceled,
}

func plivoStatus(s string) calls.Status {
	if st, ok := plivoStatusTable[strings.ToLower(s)]; ok {
		return st
	}
	return calls.StatusFailed
}

var plivoEventTable = map[string]EventType{
	"StartApp":  EventCallInitiated,
	"Ringing":   EventCallRinging,
	"Answer":    EventCallAnswered,
	"Hangup":    EventCallCompleted,
	"Failed":    EventCallFailed,
	"delivered": EventSMSDelivered,
	"sent":      EventSMSDelivered,
	"failed":    EventSMSFailed,
}

func plivoEvent(s string) EventType {
	if e, ok := plivoEventTable[s]; ok {
		return e
	}
	return EventCallInitiated
}

func parsePlivoTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
