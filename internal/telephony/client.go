package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// APIError is a non-2xx vendor response.
type APIError struct {
	Provider Provider
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telephony: %s api returned %d: %s", e.Provider, e.Status, e.Body)
}

// apiClient is the shared HTTP plumbing behind every adapter.
// It knows nothing about vendor semantics beyond auth and encoding.
type apiClient struct {
	provider Provider
	baseURL  string
	http     *http.Client
	auth     func(*http.Request)
	log      *slog.Logger
}

func basicAuth(user, pass string) func(*http.Request) {
	return func(r *http.Request) { r.SetBasicAuth(user, pass) }
}

func bearerAuth(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func (c *apiClient) form(ctx context.Context, method, path string, values url.Values, out any) error {
	var body io.Reader
	if values != nil {
		body = strings.NewReader(values.Encode())
	}
	return c.do(ctx, method, path, body, "application/x-www-form-urlencoded", out)
}

func (c *apiClient) json(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("telephony: marshal %s request: %w", c.provider, err)
		}
		body = bytes.NewReader(b)
	}
	return c.do(ctx, method, path, body, "application/json", out)
}

func (c *apiClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("telephony: build %s request: %w", c.provider, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		c.auth(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telephony: %s request failed: %w", c.provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("telephony: read %s response: %w", c.provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Debug("carrier api error", "method", method, "path", path, "status", resp.StatusCode)
		return &APIError{Provider: c.provider, Status: resp.StatusCode, Body: truncate(string(raw), 512)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("telephony: decode %s response: %w", c.provider, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// payload helpers for webhook maps. Vendors send either flat forms or nested JSON.

// lookup walks a dotted path through nested maps.
func lookup(m map[string]any, path string) any {
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = mm[part]
	}
	return cur
}

// str returns the first non-empty string found at any of paths.
func str(m map[string]any, paths ...string) string {
	for _, p := range paths {
		switch v := lookup(m, p).(type) {
		case string:
			if v != "" {
				return v
			}
		case []string:
			if len(v) > 0 && v[0] != "" {
				return v[0]
			}
		case []any:
			if len(v) > 0 {
				if s, ok := v[0].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return ""
}
