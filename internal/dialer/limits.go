package dialer

import (
	"context"
	"sync"
	"time"

	"voice-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultRateLimit  = 10
	rateLimitWindow   = time.Minute
	concurrencyTTL    = 10 * time.Minute
	rateLimitKeyspace = "dialer:rate:"
	concurrencyPrefix = "dialer:concurrent:"
)

// RateLimiter caps initiated calls per business over a sliding one-minute
// window. Reserve counts a call before it is placed, atomically with the cap
// check. Cancel hands the slot back when the call never left.
type RateLimiter interface {
	Reserve(ctx context.Context, businessID string) (token string, ok bool, err error)
	Cancel(ctx context.Context, businessID, token string) error
}

// ConcurrencyLimiter caps in-flight calls per business.
type ConcurrencyLimiter interface {
	Acquire(ctx context.Context, businessID string, limit int) (bool, error)
	Release(ctx context.Context, businessID string) error
}

type attempt struct {
	at    time.Time
	token string
}

// MemoryRateLimiter keeps per-business attempt timestamps in process.
type MemoryRateLimiter struct {
	limit int
	now   func() time.Time

	mu       sync.Mutex
	attempts map[string][]attempt
}

func NewMemoryRateLimiter(limit int, now func() time.Time) *MemoryRateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryRateLimiter{limit: limit, now: now, attempts: map[string][]attempt{}}
}

// prune drops attempts outside the window. Caller holds mu.
func (l *MemoryRateLimiter) prune(businessID string, now time.Time) []attempt {
	kept := l.attempts[businessID][:0]
	for _, a := range l.attempts[businessID] {
		if now.Sub(a.at) < rateLimitWindow {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		delete(l.attempts, businessID)
		return nil
	}
	l.attempts[businessID] = kept
	return kept
}

func (l *MemoryRateLimiter) Reserve(_ context.Context, businessID string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	kept := l.prune(businessID, now)
	if len(kept) >= l.limit {
		return "", false, nil
	}
	token := uuid.NewString()
	l.attempts[businessID] = append(kept, attempt{at: now, token: token})
	return token, true, nil
}

func (l *MemoryRateLimiter) Cancel(_ context.Context, businessID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	list := l.attempts[businessID]
	for i, a := range list {
		if a.token == token {
			l.attempts[businessID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(l.attempts[businessID]) == 0 {
		delete(l.attempts, businessID)
	}
	return nil
}

// RedisRateLimiter shares the window across processes through a sorted set
// per business.
type RedisRateLimiter struct {
	rdb   redis.Scripter
	limit int
	now   func() time.Time
}

func NewRedisRateLimiter(rdb redis.Scripter, limit int, now func() time.Time) *RedisRateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if now == nil {
		now = time.Now
	}
	return &RedisRateLimiter{rdb: rdb, limit: limit, now: now}
}

func (l *RedisRateLimiter) Reserve(ctx context.Context, businessID string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := utils.SlidingWindowReserve(ctx, l.rdb, rateLimitKeyspace+businessID, token, l.limit, rateLimitWindow, l.now())
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (l *RedisRateLimiter) Cancel(ctx context.Context, businessID, token string) error {
	return utils.SlidingWindowCancel(ctx, l.rdb, rateLimitKeyspace+businessID, token)
}

// MemoryConcurrency counts in-flight calls per business.
type MemoryConcurrency struct {
	mu     sync.Mutex
	active map[string]int
}

func NewMemoryConcurrency() *MemoryConcurrency {
	return &MemoryConcurrency{active: map[string]int{}}
}

func (c *MemoryConcurrency) Acquire(_ context.Context, businessID string, limit int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit > 0 && c.active[businessID] >= limit {
		return false, nil
	}
	c.active[businessID]++
	return true, nil
}

func (c *MemoryConcurrency) Release(_ context.Context, businessID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[businessID] <= 1 {
		delete(c.active, businessID)
		return nil
	}
	c.active[businessID]--
	return nil
}

// RedisConcurrency uses the shared Lua cap; the TTL reclaims slots leaked by
// a crashed process.
type RedisConcurrency struct {
	rdb redis.Scripter
}

func NewRedisConcurrency(rdb redis.Scripter) *RedisConcurrency {
	return &RedisConcurrency{rdb: rdb}
}

func (c *RedisConcurrency) Acquire(ctx context.Context, businessID string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	return utils.AcquireConcurrencyCap(ctx, c.rdb, concurrencyPrefix+businessID, limit, concurrencyTTL)
}

func (c *RedisConcurrency) Release(ctx context.Context, businessID string) error {
	return utils.ReleaseConcurrencyCap(ctx, c.rdb, concurrencyPrefix+businessID)
}
