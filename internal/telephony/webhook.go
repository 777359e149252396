package telephony

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// ReadWebhookPayload decodes a vendor callback body into a flat or nested map.
// Twilio, SignalWire and Plivo post application/x-www-form-urlencoded bodies;
// Telnyx posts JSON. Form fields are flattened to their first value.
//
// Signature verification happens before this point and is not repeated here.
func ReadWebhookPayload(r *http.Request) (map[string]any, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case ct == "application/json" || strings.HasSuffix(ct, "+json"):
		raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		out := map[string]any{}
		if len(strings.TrimSpace(string(raw))) == 0 {
			return out, nil
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("telephony: invalid json webhook: %w", err)
		}
		return out, nil
	default:
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		out := make(map[string]any, len(r.PostForm))
		for k, v := range r.PostForm {
			if len(v) > 0 {
				out[k] = strings.TrimSpace(v[0])
			}
		}
		// Plivo also sends answer callbacks as GET with query params.
		for k, v := range r.URL.Query() {
			if _, ok := out[k]; !ok && len(v) > 0 {
				out[k] = strings.TrimSpace(v[0])
			}
		}
		return out, nil
	}
}

// CallerName extracts the caller display name when the carrier sends one.
func CallerName(ev WebhookEvent) string {
	return str(ev.RawPayload, "CallerName", "CNAM", "data.payload.caller_id_name")
}
