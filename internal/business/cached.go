package business

import (
	"context"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"voice-platform/internal/dialer"
	"voice-platform/internal/routing"
	"voice-platform/pkg/logger"
)

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = time.Minute
)

type cached[T any] struct {
	value    T
	loadedAt time.Time
}

// CachedSource memoizes lookups from an underlying Source. Entries older
// than the TTL are reloaded; Invalidate drops a business immediately.
type CachedSource struct {
	src   Source
	ttl   time.Duration
	clock func() time.Time
	log   *slog.Logger

	configs  *lru.Cache[string, cached[routing.BusinessConfig]]
	rules    *lru.Cache[string, cached[[]routing.RoutingRule]]
	outbound *lru.Cache[string, cached[dialer.OutboundConfig]]
}

type CacheOption func(*CachedSource)

func WithTTL(d time.Duration) CacheOption           { return func(c *CachedSource) { c.ttl = d } }
func WithCacheClock(f func() time.Time) CacheOption { return func(c *CachedSource) { c.clock = f } }
func WithCacheLogger(l *slog.Logger) CacheOption    { return func(c *CachedSource) { c.log = l } }

func NewCachedSource(src Source, size int, opts ...CacheOption) (*CachedSource, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	c := &CachedSource{src: src, ttl: defaultCacheTTL, clock: time.Now, log: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	var err error
	if c.configs, err = lru.New[string, cached[routing.BusinessConfig]](size); err != nil {
		return nil, err
	}
	if c.rules, err = lru.New[string, cached[[]routing.RoutingRule]](size); err != nil {
		return nil, err
	}
	if c.outbound, err = lru.New[string, cached[dialer.OutboundConfig]](size); err != nil {
		return nil, err
	}
	c.log = logger.Component(c.log, "business_cache")
	return c, nil
}

func load[T any](c *CachedSource, cache *lru.Cache[string, cached[T]], key string, fetch func() (T, error)) (T, error) {
	now := c.clock()
	if hit, ok := cache.Get(key); ok && now.Sub(hit.loadedAt) < c.ttl {
		return hit.value, nil
	}
	v, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}
	cache.Add(key, cached[T]{value: v, loadedAt: now})
	return v, nil
}

func (c *CachedSource) BusinessConfig(ctx context.Context, businessID string) (routing.BusinessConfig, error) {
	return load(c, c.configs, businessID, func() (routing.BusinessConfig, error) {
		return c.src.BusinessConfig(ctx, businessID)
	})
}

func (c *CachedSource) RoutingRules(ctx context.Context, businessID string) ([]routing.RoutingRule, error) {
	rules, err := load(c, c.rules, businessID, func() ([]routing.RoutingRule, error) {
		return c.src.RoutingRules(ctx, businessID)
	})
	if err != nil {
		return nil, err
	}
	return append([]routing.RoutingRule(nil), rules...), nil
}

func (c *CachedSource) OutboundConfig(ctx context.Context, businessID string) (dialer.OutboundConfig, error) {
	return load(c, c.outbound, businessID, func() (dialer.OutboundConfig, error) {
		return c.src.OutboundConfig(ctx, businessID)
	})
}

// Invalidate forgets everything cached for a business.
func (c *CachedSource) Invalidate(businessID string) {
	c.configs.Remove(businessID)
	c.rules.Remove(businessID)
	c.outbound.Remove(businessID)
	c.log.Debug("business cache invalidated", "business_id", businessID)
}
