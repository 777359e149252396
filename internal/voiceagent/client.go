package voiceagent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"voice-platform/internal/routing"
	"voice-platform/internal/tts"
	"voice-platform/pkg/logger"
)

const (
	DefaultVoice    = "abe"
	defaultGreeting = "Hello, how can I help you today?"
)

var ErrSynthesisFailed = errors.New("voiceagent: synthesis failed")

// Client talks to the conversational voice service. It accepts inbound
// calls for the router and renders speech for the TTS cache.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *slog.Logger
}

func New(baseURL, apiKey string, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
		log:     logger.Component(log, "voiceagent"),
	}
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("voiceagent: %s: %w", path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("voiceagent: %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// AcceptInboundCall hands an answered call to the agent.
func (c *Client) AcceptInboundCall(ctx context.Context, callID string, opts routing.AgentOptions) (routing.AgentSession, error) {
	voice := opts.VoiceModelID
	if voice == "" {
		voice = DefaultVoice
	}
	greeting := opts.Greeting
	if greeting == "" {
		greeting = defaultGreeting
	}
	body := map[string]any{
		"call_id":     callID,
		"voice_model": voice,
		"greeting":    greeting,
	}
	if opts.KnowledgeBase != "" {
		body["knowledge_base"] = opts.KnowledgeBase
	}
	var out struct {
		Success   bool   `json:"success"`
		SessionID string `json:"session_id"`
		Error     string `json:"error"`
	}
	if err := c.post(ctx, "/api/v1/calls/accept", body, &out); err != nil {
		return routing.AgentSession{}, err
	}
	if !out.Success {
		c.log.Warn("agent declined call", "call_id", callID, "err", out.Error)
	}
	return routing.AgentSession{Success: out.Success, SessionID: out.SessionID}, nil
}

// Synthesize renders text through the text-to-speech endpoint.
func (c *Client) Synthesize(ctx context.Context, r tts.Request) ([]byte, map[string]string, error) {
	voice := r.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	meta := map[string]any{}
	if r.Emotion != "" {
		meta["emotion"] = r.Emotion
	}
	if r.Intensity != 0 {
		meta["intensity"] = r.Intensity
	}
	if r.Pacing != "" {
		meta["pacing"] = r.Pacing
	}
	body := map[string]any{
		"text":             r.Text,
		"voice_id":         voice,
		"stability":        0.5,
		"similarity_boost": 0.75,
		"style":            0.0,
		"metadata":         meta,
	}
	var out struct {
		Success     bool           `json:"success"`
		AudioBase64 string         `json:"audio_base64"`
		Error       string         `json:"error"`
		Metadata    map[string]any `json:"metadata"`
	}
	if err := c.post(ctx, "/api/v1/text-to-speech", body, &out); err != nil {
		return nil, nil, err
	}
	if !out.Success || out.AudioBase64 == "" {
		return nil, nil, fmt.Errorf("%w: %s", ErrSynthesisFailed, out.Error)
	}
	audio, err := base64.StdEncoding.DecodeString(out.AudioBase64)
	if err != nil {
		return nil, nil, fmt.Errorf("voiceagent: decode audio: %w", err)
	}
	flat := make(map[string]string, len(out.Metadata))
	for k, v := range out.Metadata {
		flat[k] = fmt.Sprint(v)
	}
	return audio, flat, nil
}

// Online reports whether the service answers its status probe.
func (c *Client) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/status", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	var out struct {
		Status string `json:"status"`
	}
	if json.NewDecoder(resp.Body).Decode(&out) != nil {
		return false
	}
	return out.Status == "online"
}
