package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultMaxEntries bounds the in-memory store when no size is configured.
	DefaultMaxEntries = 1024
	// DefaultTTL is the store-wide expiry used when no TTL is configured.
	DefaultTTL = time.Minute
)

type inMemoryItem struct {
	value     []byte
	expiresAt time.Time
}

// InMemoryConfig configures an in-memory cache backend.
type InMemoryConfig struct {
	MaxEntries int
	// TTL is the upper bound for every entry. Shorter per-call TTLs are honoured.
	TTL time.Duration
}

// InMemoryStore is an in-process LRU with expiring entries.
type InMemoryStore struct {
	items *expirable.LRU[string, inMemoryItem]
	now   func() time.Time
}

// NewInMemoryStore creates an in-memory cache store.
func NewInMemoryStore(cfg InMemoryConfig) *InMemoryStore {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &InMemoryStore{
		items: expirable.NewLRU[string, inMemoryItem](cfg.MaxEntries, nil, cfg.TTL),
		now:   time.Now,
	}
}

// Get loads a key from memory.
func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	item, ok := s.items.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !item.expiresAt.IsZero() && !s.now().Before(item.expiresAt) {
		s.items.Remove(key)
		return nil, ErrCacheMiss
	}
	return append([]byte{}, item.value...), nil
}

// Set stores a key. A non-positive ttl keeps the entry for the store TTL.
func (s *InMemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	item := inMemoryItem{value: append([]byte{}, value...)}
	if ttl > 0 {
		item.expiresAt = s.now().Add(ttl)
	}
	s.items.Add(key, item)
	return nil
}

// Delete removes a key.
func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.items.Remove(key)
	return nil
}

// Len reports the number of live entries.
func (s *InMemoryStore) Len() int {
	return s.items.Len()
}

// HealthCheck always succeeds for the in-memory store.
func (s *InMemoryStore) HealthCheck(context.Context) error {
	return nil
}

// Close drops every entry.
func (s *InMemoryStore) Close() error {
	s.items.Purge()
	return nil
}
