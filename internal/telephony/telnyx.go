package telephony

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voice-platform/internal/calls"
)

// telnyxCarrier talks to the Telnyx v2 call control API (JSON, bearer auth).
type telnyxCarrier struct {
	cfg          CarrierConfig
	connectionID string
	api          *apiClient
	log          *slog.Logger
	now          func() time.Time
}

// NewTelnyx builds the Telnyx adapter. Requires api_key; connection_id is optional
// but calls cannot be placed without it on most accounts.
func NewTelnyx(cfg CarrierConfig, opts ...Option) (Carrier, error) {
	cfg.Provider = ProviderTelnyx
	if err := cfg.require("api_key"); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	base := o.baseURL
	if base == "" {
		base = "https://api.telnyx.com"
	}
	log := o.logger.With("provider", string(cfg.Provider))
	return &telnyxCarrier{
		cfg:          cfg,
		connectionID: cfg.credential("connection_id"),
		api: &apiClient{
			provider: cfg.Provider,
			baseURL:  base + "/v2",
			http:     o.httpClient,
			auth:     bearerAuth(cfg.credential("api_key")),
			log:      log,
		},
		log: log,
		now: o.now,
	}, nil
}

func (c *telnyxCarrier) Name() Provider { return ProviderTelnyx }

func (c *telnyxCarrier) MakeCall(ctx context.Context, req CallRequest) CallResult {
	from := req.From
	if from == "" {
		from = c.cfg.DefaultFrom
	}
	hook := req.WebhookURL
	if hook == "" {
		hook = c.cfg.webhook("voice")
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	body := map[string]any{
		"connection_id": c.connectionID,
		"to":            req.To,
		"from":          from,
		"webhook_url":   hook,
		"timeout_secs":  int(timeout.Seconds()),
	}
	if req.MachineDetection {
		body["answering_machine_detection"] = "detect"
	}
	if req.Record {
		body["record"] = "record-from-answer"
	}

	var out struct {
		Data struct {
			CallControlID string `json:"call_control_id"`
			State         string `json:"state"`
		} `json:"data"`
	}
	if err := c.api.json(ctx, http.MethodPost, "/calls", body, &out); err != nil {
		c.log.Warn("make call failed", "to", req.To, "err", err)
		return CallResult{Success: false, Provider: ProviderTelnyx, Status: calls.StatusFailed, Error: err.Error()}
	}
	st := calls.StatusQueued
	if out.Data.State != "" {
		st = telnyxStatus(out.Data.State)
	}
	return CallResult{Success: true, CallID: out.Data.CallControlID, Provider: ProviderTelnyx, Status: st}
}

func (c *telnyxCarrier) GetCallStatus(ctx context.Context, callID string) (CallStatus, error) {
	var out struct {
		Data struct {
			CallControlID string `json:"call_control_id"`
			State         string `json:"state"`
			IsAlive       *bool  `json:"is_alive"`
			CallDuration  int    `json:"call_duration"`
			From          string `json:"from"`
			To            string `json:"to"`
			Direction     string `json:"direction"`
		} `json:"data"`
	}
	if err := c.api.do(ctx, http.MethodGet, "/calls/"+url.PathEscape(callID), nil, "", &out); err != nil {
		return CallStatus{}, err
	}
	state := out.Data.State
	if state == "" && out.Data.IsAlive != nil {
		state = "hangup"
		if *out.Data.IsAlive {
			state = "active"
		}
	}
	st := CallStatus{
		CallID:          callID,
		Provider:        ProviderTelnyx,
		Status:          telnyxStatus(state),
		Direction:       calls.DirectionOutbound,
		From:            out.Data.From,
		To:              out.Data.To,
		DurationSeconds: out.Data.CallDuration,
	}
	if out.Data.Direction == "incoming" {
		st.Direction = calls.DirectionInbound
	}
	return st, nil
}

func (c *telnyxCarrier) EndCall(ctx context.Context, callID string) bool {
	if err := c.api.json(ctx, http.MethodPost, "/calls/"+url.PathEscape(callID)+"/actions/hangup", map[string]any{}, nil); err != nil {
		c.log.Warn("end call failed", "call_id", callID, "err", err)
		return false
	}
	return true
}

func (c *telnyxCarrier) TransferCall(ctx context.Context, callID, target string) bool {
	if err := c.api.json(ctx, http.MethodPost, "/calls/"+url.PathEscape(callID)+"/actions/transfer", map[string]any{"to": target}, nil); err != nil {
		c.log.Warn("transfer call failed", "call_id", callID, "err", err)
		return false
	}
	return true
}

func (c *telnyxCarrier) SendSMS(ctx context.Context, req SMSRequest) SMSResult {
	from := req.From
	if from == "" {
		from = c.cfg.DefaultFrom
	}
	body := map[string]any{
		"from": from,
		"to":   req.To,
		"text": req.Body,
		"type": "SMS",
	}
	if len(req.MediaURLs) > 0 {
		body["media_urls"] = req.MediaURLs
		body["type"] = "MMS"
	}
	cb := req.StatusCallbackURL
	if cb == "" {
		cb = c.cfg.webhook("sms-status")
	}
	body["webhook_url"] = cb

	var out struct {
		Data struct {
			ID string `json:"id"`
			To []struct {
				Status string `json:"status"`
			} `json:"to"`
		} `json:"data"`
	}
	if err := c.api.json(ctx, http.MethodPost, "/messages", body, &out); err != nil {
		c.log.Warn("send sms failed", "to", req.To, "err", err)
		return SMSResult{Success: false, Provider: ProviderTelnyx, Status: SMSStatusFailed, Error: err.Error()}
	}
	status := SMSStatusQueued
	if len(out.Data.To) > 0 && out.Data.To[0].Status == "sent" {
		status = SMSStatusSent
	}
	return SMSResult{Success: true, MessageID: out.Data.ID, Provider: ProviderTelnyx, Status: status}
}

type telnyxNumber struct {
	ID             string `json:"id"`
	PhoneNumber    string `json:"phone_number"`
	ConnectionName string `json:"connection_name"`
}

func (c *telnyxCarrier) findNumbers(ctx context.Context, filter string) ([]telnyxNumber, error) {
	path := "/phone_numbers"
	if filter != "" {
		path += "?filter[phone_number]=" + url.QueryEscape(filter)
	}
	var out struct {
		Data []telnyxNumber `json:"data"`
	}
	if err := c.api.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *telnyxCarrier) ListNumbers(ctx context.Context) ([]PhoneNumber, error) {
	nums, err := c.findNumbers(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]PhoneNumber, 0, len(nums))
	for _, n := range nums {
		out = append(out, PhoneNumber{
			Number:       n.PhoneNumber,
			ProviderID:   n.ID,
			Provider:     ProviderTelnyx,
			FriendlyName: n.ConnectionName,
			Voice:        true,
			SMS:          true,
		})
	}
	return out, nil
}

func (c *telnyxCarrier) PurchaseNumber(ctx context.Context, req NumberRequest) (PhoneNumber, error) {
	number := req.Number
	if number == "" {
		q := url.Values{}
		q.Set("filter[limit]", "1")
		q.Set("filter[features][]", "voice")
		if req.AreaCode != "" {
			q.Set("filter[national_destination_code]", req.AreaCode)
		}
		country := req.Country
		if country == "" {
			country = "US"
		}
		q.Set("filter[country_code]", country)
		var avail struct {
			Data []struct {
				PhoneNumber string `json:"phone_number"`
			} `json:"data"`
		}
		if err := c.api.do(ctx, http.MethodGet, "/available_phone_numbers?"+q.Encode(), nil, "", &avail); err != nil {
			return PhoneNumber{}, err
		}
		if len(avail.Data) == 0 {
			return PhoneNumber{}, ErrNoNumberAvailable
		}
		number = avail.Data[0].PhoneNumber
	}

	body := map[string]any{
		"phone_numbers": []map[string]string{{"phone_number": number}},
	}
	if c.connectionID != "" {
		body["connection_id"] = c.connectionID
	}
	var out struct {
		Data struct {
			ID           string `json:"id"`
			PhoneNumbers []struct {
				ID          string `json:"id"`
				PhoneNumber string `json:"phone_number"`
			} `json:"phone_numbers"`
		} `json:"data"`
	}
	if err := c.api.json(ctx, http.MethodPost, "/number_orders", body, &out); err != nil {
		return PhoneNumber{}, err
	}
	pn := PhoneNumber{Number: number, ProviderID: out.Data.ID, Provider: ProviderTelnyx, Voice: true, SMS: true}
	if len(out.Data.PhoneNumbers) > 0 {
		pn.Number = out.Data.PhoneNumbers[0].PhoneNumber
		if out.Data.PhoneNumbers[0].ID != "" {
			pn.ProviderID = out.Data.PhoneNumbers[0].ID
		}
	}
	return pn, nil
}

func (c *telnyxCarrier) ReleaseNumber(ctx context.Context, number string) bool {
	nums, err := c.findNumbers(ctx, number)
	if err != nil || len(nums) == 0 {
		c.log.Warn("release number lookup failed", "number", number, "err", err)
		return false
	}
	if err := c.api.do(ctx, http.MethodDelete, "/phone_numbers/"+url.PathEscape(nums[0].ID), nil, "", nil); err != nil {
		c.log.Warn("release number failed", "number", number, "err", err)
		return false
	}
	return true
}

func (c *telnyxCarrier) ParseWebhook(payload map[string]any) WebhookEvent {
	kind := strings.ToLower(str(payload, "data.event_type"))
	ev := WebhookEvent{
		Provider:   ProviderTelnyx,
		Type:       telnyxEvent(kind),
		From:       str(payload, "data.payload.from.phone_number", "data.payload.from"),
		To:         telnyxTo(payload),
		Timestamp:  c.now().UTC(),
		RawPayload: payload,
	}
	if strings.HasPrefix(kind, "message.") {
		ev.MessageID = str(payload, "data.payload.id")
	} else {
		ev.CallID = str(payload, "data.payload.call_control_id", "data.payload.id")
	}
	if ts := str(payload, "data.occurred_at"); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ev.Timestamp = t.UTC()
		}
	}

	switch kind {
	case "call.initiated":
		ev.Status = calls.StatusQueued
	case "call.ringing":
		ev.Status = calls.StatusRinging
	case "call.answered":
		ev.Status = calls.StatusInProgress
	case "call.hangup":
		ev.Status = telnyxHangup(str(payload, "data.payload.hangup_cause"))
		if ev.Status != calls.StatusCompleted {
			ev.Type = EventCallFailed
		}
	case "call.machine.detection.ended", "call.machine.premium.detection.ended":
		ev.Type = EventCallAnswered
		ev.Status = calls.StatusInProgress
		if strings.Contains(str(payload, "data.payload.result"), "machine") {
			ev.AnsweredBy = "machine"
		} else {
			ev.AnsweredBy = "human"
		}
	}
	return ev
}

func (c *telnyxCarrier) IsHealthy(ctx context.Context) bool {
	return c.api.do(ctx, http.MethodGet, "/balance", nil, "", nil) == nil
}

func telnyxTo(payload map[string]any) string {
	if to, ok := lookup(payload, "data.payload.to").([]any); ok && len(to) > 0 {
		if m, ok := to[0].(map[string]any); ok {
			return str(m, "phone_number")
		}
	}
	return str(payload, "data.payload.to")
}

var telnyxStatusTable = map[string]calls.Status{
	"queued":    calls.StatusQueued,
	"parked":    calls.StatusQueued,
	"ringing":   calls.StatusRinging,
	"bridging":  calls.StatusRinging,
	"active":    calls.StatusInProgress,
	"answered":  calls.StatusInProgress,
	"completed": calls.StatusCompleted,
	"hangup":    calls.StatusCompleted,
	"busy":      calls.StatusBusy,
	"timeout":   calls.StatusNoAnswer,
	"failed":    calls.StatusFailed,
}

func telnyxStatus(s string) calls.Status {
	if st, ok := telnyxStatusTable[strings.ToLower(s)]; ok {
		return st
	}
	return calls.StatusFailed
}

var telnyxEventTable = map[string]EventType{
	"call.initiated":    EventCallInitiated,
	"call.ringing":      EventCallRinging,
	"call.answered":     EventCallAnswered,
	"call.hangup":       EventCallCompleted,
	"call.failed":       EventCallFailed,
	"message.received":  EventSMSReceived,
	"message.sent":      EventSMSDelivered,
	"message.finalized": EventSMSDelivered,
}

func telnyxEvent(s string) EventType {
	if e, ok := telnyxEventTable[s]; ok {
		return e
	}
	return EventCallInitiated
}

func telnyxHangup(cause string) calls.Status {
	switch strings.ToLower(cause) {
	case "user_busy", "busy":
		return calls.StatusBusy
	case "timeout", "no_answer", "originator_cancel":
		return calls.StatusNoAnswer
	case "call_rejected", "unallocated_number", "normal_temporary_failure":
		return calls.StatusFailed
	default:
		return calls.StatusCompleted
	}
}
