package tts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memObjects struct {
	mu      sync.Mutex
	entries map[string]Entry
	deleted []string
}

func newMemObjects() *memObjects { return &memObjects{entries: map[string]Entry{}} }

func (m *memObjects) Get(_ context.Context, key string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, ErrCacheMiss
	}
	return e, nil
}

func (m *memObjects) Put(_ context.Context, key string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
	return nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type stubSynth struct {
	calls int
	err   error
}

func (s *stubSynth) Synthesize(_ context.Context, req Request) ([]byte, map[string]string, error) {
	s.calls++
	if s.err != nil {
		return nil, nil, s.err
	}
	return []byte("audio:" + req.Text), map[string]string{"voice": req.Voice}, nil
}

func TestKey(t *testing.T) {
	a := Key(Request{Text: "hello", Voice: "abe", Provider: "abevoice"})
	assert.Len(t, a, 64)
	assert.Equal(t, a, Key(Request{Text: "hello", Voice: "abe", Provider: "abevoice"}))
	assert.NotEqual(t, a, Key(Request{Text: "hello", Voice: "abe", Provider: "abevoice", Emotion: "calm"}))
	assert.NotEqual(t, a, Key(Request{Text: "hello", Voice: "abe", Provider: "abevoice", Intensity: 0.5}))
	// Separators keep field boundaries distinct.
	assert.NotEqual(t, Key(Request{Text: "a", Voice: "b"}), Key(Request{Text: "ab"}))
}

func TestCache_TiersAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	objects := newMemObjects()
	c, err := NewCache(4, objects, nil, func() time.Time { return now })
	require.NoError(t, err)

	c.Set(ctx, "k1", []byte("x"), nil, time.Hour)
	e, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("x"), e.Audio)
	assert.Contains(t, objects.entries, "k1")

	// A fresh process reads through to the object tier.
	c2, err := NewCache(4, objects, nil, func() time.Time { return now })
	require.NoError(t, err)
	_, ok = c2.Get(ctx, "k1")
	assert.True(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = c2.Get(ctx, "k1")
	assert.False(t, ok)
	assert.Contains(t, objects.deleted, "k1")

	_, ok = c.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestEntry_DefaultTTL(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := Entry{CreatedAt: created}
	assert.False(t, e.Expired(created.Add(29*24*time.Hour)))
	assert.True(t, e.Expired(created.Add(31*24*time.Hour)))
}

func TestService_SynthesizeCaches(t *testing.T) {
	ctx := context.Background()
	synth := &stubSynth{}
	c, err := NewCache(8, nil, nil, nil)
	require.NoError(t, err)
	svc := NewService(synth, c, "", nil)

	first, err := svc.Synthesize(ctx, Request{Text: "Hi Ana", Voice: "abe"})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, Key(Request{Text: "Hi Ana", Voice: "abe", Provider: DefaultProvider}), first.Key)

	second, err := svc.Synthesize(ctx, Request{Text: "Hi Ana", Voice: "abe"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Audio, second.Audio)
	assert.Equal(t, 1, synth.calls)

	key, err := svc.Prerender(ctx, "Hi Ana", "abe")
	require.NoError(t, err)
	assert.Equal(t, first.Key, key)
	audio, ok := svc.Audio(ctx, key)
	require.True(t, ok)
	assert.Equal(t, []byte("audio:Hi Ana"), audio)
}

func TestService_Errors(t *testing.T) {
	ctx := context.Background()
	synth := &stubSynth{err: errors.New("voice service down")}
	c, err := NewCache(8, nil, nil, nil)
	require.NoError(t, err)
	svc := NewService(synth, c, "", nil)

	_, err = svc.Synthesize(ctx, Request{Text: "  "})
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = svc.Synthesize(ctx, Request{Text: "hello"})
	require.Error(t, err)
	synth.err = nil
	res, err := svc.Synthesize(ctx, Request{Text: "hello"})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 2, synth.calls)
}
