package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	errNilRedis   = errors.New("redis client is nil")
	errMissingKey = errors.New("key is required")
)

// RedisConfig tunes the go-redis client. Zero values take the defaults below.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 3 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 2 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 2 * time.Second
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 20
	}
	if c.MinIdleConns < 0 {
		c.MinIdleConns = 0
	}
	if c.PoolTimeout <= 0 {
		c.PoolTimeout = 4 * time.Second
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 2 * time.Second
	}
	return c
}

// OpenRedis builds a client and PINGs it once. The client backs the event
// relay, the redis call-state store and the dialer limits.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	cfg = cfg.withDefaults()

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func checkScriptArgs(rdb redis.Scripter, key string) error {
	if rdb == nil {
		return errNilRedis
	}
	if key == "" {
		return errMissingKey
	}
	return nil
}

// Slot counter for in-flight calls. Every acquire refreshes the TTL, so a
// counter orphaned by a crashed process drains once calls stop.
var concurrencyAcquireScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
if n > tonumber(ARGV[1]) then
  redis.call('DECR', KEYS[1])
  return 0
end
return 1
`)

var concurrencyReleaseScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
if redis.call('DECR', KEYS[1]) <= 0 then
  redis.call('DEL', KEYS[1])
end
return 1
`)

// AcquireConcurrencyCap takes one of limit slots under key (one key per
// business). It returns false without error when every slot is taken.
func AcquireConcurrencyCap(ctx context.Context, rdb redis.Scripter, key string, limit int, ttl time.Duration) (bool, error) {
	if err := checkScriptArgs(rdb, key); err != nil {
		return false, err
	}
	if limit <= 0 || ttl <= 0 {
		return false, fmt.Errorf("limit and ttl must be > 0, got %d and %s", limit, ttl)
	}
	res, err := concurrencyAcquireScript.Run(ctx, rdb, []string{key}, limit, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// ReleaseConcurrencyCap gives a slot back. Releasing an expired counter is a no-op.
func ReleaseConcurrencyCap(ctx context.Context, rdb redis.Scripter, key string) error {
	if err := checkScriptArgs(rdb, key); err != nil {
		return err
	}
	return concurrencyReleaseScript.Run(ctx, rdb, []string{key}).Err()
}

// Sorted set of attempt timestamps (ms). Trimming, the cap check and the add
// run as one script so concurrent reservations cannot overshoot the limit.
var slidingWindowReserveScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', tonumber(ARGV[1]) - tonumber(ARGV[2]))
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

var slidingWindowCancelScript = redis.NewScript(`
return redis.call('ZREM', KEYS[1], ARGV[1])
`)

// SlidingWindowReserve records member at now if fewer than limit attempts
// fall in the window ending at now. member must be unique per attempt (a
// uuid is fine); the key expires one window after the last attempt.
func SlidingWindowReserve(ctx context.Context, rdb redis.Scripter, key, member string, limit int, window time.Duration, now time.Time) (bool, error) {
	if err := checkScriptArgs(rdb, key); err != nil {
		return false, err
	}
	if member == "" {
		return false, errors.New("member is required")
	}
	if limit <= 0 || window <= 0 {
		return false, fmt.Errorf("limit and window must be > 0, got %d and %s", limit, window)
	}
	res, err := slidingWindowReserveScript.Run(ctx, rdb, []string{key}, now.UnixMilli(), window.Milliseconds(), limit, member).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// SlidingWindowCancel drops a reservation made by SlidingWindowReserve.
func SlidingWindowCancel(ctx context.Context, rdb redis.Scripter, key, member string) error {
	if err := checkScriptArgs(rdb, key); err != nil {
		return err
	}
	if member == "" {
		return nil
	}
	return slidingWindowCancelScript.Run(ctx, rdb, []string{key}, member).Err()
}
