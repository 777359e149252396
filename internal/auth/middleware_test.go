package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"voice-platform/internal/config"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Manager, TokenPair) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m, err := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	pair, err := m.IssuePair(time.Now(), "user-1", "biz-1", "owner")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	r := gin.New()
	echo := func(c *gin.Context) {
		id, err := BusinessID(c.Request.Context())
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id)
	}
	r.GET("/api", RequireAccessToken(m), echo)
	r.GET("/ws", RequireSocketToken(m), echo)
	return r, m, pair
}

func TestRequireAccessToken(t *testing.T) {
	r, _, pair := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "biz-1" {
		t.Fatalf("expected 200 biz-1, got %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api?token="+pair.AccessToken, nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("query tokens must not work on the API, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh token accepted as access token, got %d", w.Code)
	}
}

func TestRequireSocketToken(t *testing.T) {
	r, m, pair := newTestRouter(t)

	sock, err := m.IssueSocketToken(time.Now(), "user-1", "biz-1", "owner")
	if err != nil {
		t.Fatalf("issue socket token: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+sock, nil))
	if w.Code != http.StatusOK || w.Body.String() != "biz-1" {
		t.Fatalf("expected 200 biz-1, got %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("bearer access token should upgrade, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+pair.AccessToken, nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("access token in query must be rejected, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
