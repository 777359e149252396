package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("store: not found")

// Store is the key/value capability the router and dialer persist through.
// Values are opaque JSON bytes. Scan returns entries ordered by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Scan(ctx context.Context, prefix string) ([]Entry, error)
}

type Entry struct {
	Key   string
	Value []byte
}

// MemoryStore is the in-process reference implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{data: map[string][]byte{}} }

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	s.mu.Lock()
	s.data[key] = v
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Scan(_ context.Context, prefix string) ([]Entry, error) {
	s.mu.RLock()
	out := make([]Entry, 0)
	for k, v := range s.data {
		if strings.HasPrefix(k, prefix) {
			cp := make([]byte, len(v))
			copy(cp, v)
			out = append(out, Entry{Key: k, Value: cp})
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Collection stores values of one type under a key prefix, JSON encoded.
type Collection[T any] struct {
	store  Store
	prefix string
}

func NewCollection[T any](s Store, prefix string) *Collection[T] {
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &Collection[T]{store: s, prefix: prefix}
}

func (c *Collection[T]) key(id string) string { return c.prefix + id }

func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var v T
	raw, err := c.store.Get(ctx, c.key(id))
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("store: decode %s: %w", c.key(id), err)
	}
	return v, nil
}

func (c *Collection[T]) Put(ctx context.Context, id string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", c.key(id), err)
	}
	return c.store.Put(ctx, c.key(id), raw)
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, c.key(id))
}

// List decodes every value under the prefix (optionally narrowed by sub),
// ordered by key. Entries that fail to decode are skipped.
func (c *Collection[T]) List(ctx context.Context, sub string) ([]T, error) {
	entries, err := c.store.Scan(ctx, c.prefix+sub)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.Value, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
