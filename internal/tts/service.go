package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"voice-platform/pkg/logger"
)

const DefaultProvider = "abevoice"

var ErrEmptyText = errors.New("tts: text is required")

// Synthesizer renders speech. Implemented by the voice service client.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (audio []byte, meta map[string]string, err error)
}

// Result is a rendering, served from cache or freshly synthesized.
type Result struct {
	Key      string            `json:"key"`
	Audio    []byte            `json:"-"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Cached   bool              `json:"cached"`
}

type Service struct {
	synth    Synthesizer
	cache    *Cache
	provider string
	log      *slog.Logger
}

func NewService(synth Synthesizer, cache *Cache, provider string, log *slog.Logger) *Service {
	if provider == "" {
		provider = DefaultProvider
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{synth: synth, cache: cache, provider: provider, log: logger.Component(log, "tts")}
}

// Synthesize returns cached audio for req when present; otherwise it renders
// through the Synthesizer and caches the result. Failed renders are not cached.
func (s *Service) Synthesize(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Result{}, ErrEmptyText
	}
	if req.Provider == "" {
		req.Provider = s.provider
	}
	key := Key(req)
	if s.cache != nil {
		if e, ok := s.cache.Get(ctx, key); ok {
			return Result{Key: key, Audio: e.Audio, Metadata: e.Metadata, Cached: true}, nil
		}
	}
	audio, meta, err := s.synth.Synthesize(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("tts: synthesize: %w", err)
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, audio, meta, 0)
	}
	s.log.Debug("speech rendered", "key", key, "voice", req.Voice, "bytes", len(audio))
	return Result{Key: key, Audio: audio, Metadata: meta}, nil
}

// Prerender renders a call script ahead of dialing and returns its cache key.
func (s *Service) Prerender(ctx context.Context, text, voiceID string) (string, error) {
	res, err := s.Synthesize(ctx, Request{Text: text, Voice: voiceID})
	if err != nil {
		return "", err
	}
	return res.Key, nil
}

// Audio looks up previously rendered audio by key.
func (s *Service) Audio(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	e, ok := s.cache.Get(ctx, key)
	return e.Audio, ok
}
