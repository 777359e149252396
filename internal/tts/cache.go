package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"voice-platform/pkg/logger"
)

// DefaultTTL is how long rendered audio stays valid.
const DefaultTTL = 30 * 24 * time.Hour

var ErrCacheMiss = errors.New("tts: cache miss")

// Request is one synthesis job. Every field takes part in the cache key.
type Request struct {
	Text      string  `json:"text"`
	Voice     string  `json:"voice,omitempty"`
	Provider  string  `json:"provider,omitempty"`
	Emotion   string  `json:"emotion,omitempty"`
	Intensity float64 `json:"intensity,omitempty"`
	Pacing    string  `json:"pacing,omitempty"`
}

// Key is the hex sha256 of text|voice|provider|emotion|intensity|pacing.
// A zero intensity contributes an empty segment.
func Key(r Request) string {
	intensity := ""
	if r.Intensity != 0 {
		intensity = strconv.FormatFloat(r.Intensity, 'f', -1, 64)
	}
	raw := strings.Join([]string{r.Text, r.Voice, r.Provider, r.Emotion, intensity, r.Pacing}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Entry is a cached rendering.
type Entry struct {
	Audio     []byte            `json:"audio"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	TTL       time.Duration     `json:"ttl"`
}

func (e Entry) Expired(now time.Time) bool {
	ttl := e.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return now.Sub(e.CreatedAt) > ttl
}

// ObjectStore is the durable tier. Get returns ErrCacheMiss for absent keys.
type ObjectStore interface {
	Get(ctx context.Context, key string) (Entry, error)
	Put(ctx context.Context, key string, e Entry) error
	Delete(ctx context.Context, key string) error
}

// Cache is a two-tier audio cache: an in-process LRU in front of an
// optional ObjectStore. Expired entries are dropped on read.
type Cache struct {
	mem     *lru.Cache[string, Entry]
	objects ObjectStore
	clock   func() time.Time
	log     *slog.Logger
}

func NewCache(size int, objects ObjectStore, log *slog.Logger, clock func() time.Time) (*Cache, error) {
	if size <= 0 {
		size = 512
	}
	mem, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Cache{mem: mem, objects: objects, clock: clock, log: logger.Component(log, "tts_cache")}, nil
}

func (c *Cache) Get(ctx context.Context, key string) (Entry, bool) {
	now := c.clock()
	if e, ok := c.mem.Get(key); ok {
		if !e.Expired(now) {
			return e, true
		}
		c.mem.Remove(key)
	}
	if c.objects == nil {
		return Entry{}, false
	}
	e, err := c.objects.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.log.Warn("object tier read failed", "key", key, "err", err)
		}
		return Entry{}, false
	}
	if e.Expired(now) {
		if err := c.objects.Delete(ctx, key); err != nil {
			c.log.Warn("expired object delete failed", "key", key, "err", err)
		}
		return Entry{}, false
	}
	c.mem.Add(key, e)
	return e, true
}

// Set stores audio in both tiers. A zero ttl means DefaultTTL.
// Object tier failures are logged; the memory tier always succeeds.
func (c *Cache) Set(ctx context.Context, key string, audio []byte, meta map[string]string, ttl time.Duration) Entry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	e := Entry{Audio: audio, Metadata: meta, CreatedAt: c.clock(), TTL: ttl}
	c.mem.Add(key, e)
	if c.objects != nil {
		if err := c.objects.Put(ctx, key, e); err != nil {
			c.log.Warn("object tier write failed", "key", key, "err", err)
		}
	}
	return e
}
