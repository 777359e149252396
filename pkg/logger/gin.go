package logger

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	ginLoggerKey    = "logger"
)

// Route segments whose ":id" names a call-domain record. The first match
// in the matched route wins.
var idSegments = []struct{ segment, attr string }{
	{"/sessions/", "session_id"},
	{"/campaigns/", "campaign_id"},
	{"/calls/", "call_id"},
	{"/queue/", "queue_entry_id"},
}

// Probes hit these every few seconds; they log at debug.
var quietPaths = map[string]bool{"/healthz": true, "/metrics": true}

// Middleware tags a request-scoped logger with the request id and any
// provider, number or record id in the matched route, so handler logs and
// the access line for one call share the same keys. 5xx responses log at
// error and 4xx at warn.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		route := c.FullPath()
		reqLogger := l.With(append([]any{"request_id", rid}, routeAttrs(c, route)...)...)
		c.Set(ginLoggerKey, reqLogger)

		c.Next()

		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", route,
			"status", status,
			"duration_ms", float64(time.Since(start).Milliseconds()),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError || len(c.Errors) > 0:
			reqLogger.Error("request", attrs...)
		case status >= http.StatusBadRequest:
			reqLogger.Warn("request", attrs...)
		case quietPaths[route]:
			reqLogger.Debug("request", attrs...)
		default:
			reqLogger.Info("request", attrs...)
		}
	}
}

func routeAttrs(c *gin.Context, route string) []any {
	var attrs []any
	if p := c.Param("provider"); p != "" {
		attrs = append(attrs, "provider", p)
	}
	if n := c.Param("number"); n != "" {
		attrs = append(attrs, "number", n)
	}
	if id := c.Param("id"); id != "" {
		for _, s := range idSegments {
			if strings.Contains(route, s.segment) {
				attrs = append(attrs, s.attr, id)
				break
			}
		}
	}
	return attrs
}

// FromGin pulls the request-scoped logger from Gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginLoggerKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
