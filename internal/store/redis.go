package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries as plain string keys under a namespace.
// A zero TTL keeps entries until deleted.
type RedisStore struct {
	rdb       redis.UniversalClient
	namespace string
	ttl       time.Duration
}

func NewRedisStore(rdb redis.UniversalClient, namespace string, ttl time.Duration) *RedisStore {
	if namespace != "" && !strings.HasSuffix(namespace, ":") {
		namespace += ":"
	}
	return &RedisStore{rdb: rdb, namespace: namespace, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, s.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, s.namespace+key, value, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.namespace+key).Err()
}

// Scan walks SCAN cursors for prefix* and then fetches values with MGET.
// Keys that expire between the two steps are skipped.
func (s *RedisStore) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.namespace+prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []Entry{}, nil
	}
	sort.Strings(keys)

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(keys))
	for i, k := range keys {
		str, ok := vals[i].(string)
		if !ok {
			continue
		}
		out = append(out, Entry{Key: strings.TrimPrefix(k, s.namespace), Value: []byte(str)})
	}
	return out, nil
}
