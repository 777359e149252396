package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestMiddleware_TagsRouteIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := gin.New()
	r.Use(Middleware(l))
	r.POST("/v1/outbound/campaigns/:id/start", func(c *gin.Context) {
		FromGin(c).Info("starting")
		c.Status(http.StatusAccepted)
	})
	r.POST("/webhooks/:provider/status", func(c *gin.Context) {
		c.Status(http.StatusBadRequest)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/outbound/campaigns/camp-1/start", nil)
	req.Header.Set(headerRequestID, "rid-1")
	r.ServeHTTP(w, req)

	if got := w.Header().Get(headerRequestID); got != "rid-1" {
		t.Fatalf("request id not echoed, got %q", got)
	}
	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected handler and access lines, got %d", len(lines))
	}
	for _, m := range lines {
		if m["campaign_id"] != "camp-1" || m["request_id"] != "rid-1" {
			t.Fatalf("missing route attrs in %v", m)
		}
	}
	if lines[1]["path"] != "/v1/outbound/campaigns/:id/start" || lines[1]["level"] != "INFO" {
		t.Fatalf("unexpected access line %v", lines[1])
	}

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", nil))
	lines = decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["provider"] != "twilio" || lines[0]["level"] != "WARN" {
		t.Fatalf("unexpected webhook access line %v", lines)
	}
	if _, ok := lines[0]["call_id"]; ok {
		t.Fatalf("call_id set without an id param: %v", lines[0])
	}
}

func TestFromGin_FallsBackToDefault(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if FromGin(c) != slog.Default() {
		t.Fatalf("expected default logger")
	}
}
