// Package cache stores serialized search results keyed by the resolved query.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimburion/searchrepo/pkg/config"
)

var (
	// ErrCacheMiss indicates that a cache key was not found.
	ErrCacheMiss = errors.New("cache key not found")
)

// Store defines a pluggable backend for query result caching.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// NewStore builds the store selected by cfg.Type. It returns a nil Store when caching is
// disabled.
func NewStore(cfg config.CacheConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case config.CacheTypeNone:
		return nil, nil
	case config.CacheTypeInMemory:
		return NewInMemoryStore(InMemoryConfig{
			MaxEntries: cfg.MaxEntries,
			TTL:        cfg.TTL,
		}), nil
	case config.CacheTypeRedis:
		store, err := NewRedisStore(RedisConfig{
			URL:              cfg.URL,
			MaxConns:         cfg.MaxConns,
			OperationTimeout: cfg.OperationTimeout,
			Prefix:           cfg.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported cache.type %q (supported: inmemory, redis)", cfg.Type)
	}
}

// Key derives a stable cache key from the index and the query body.
func Key(index string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(index))
	h.Write([]byte{0})
	h.Write(body)
	return index + ":" + hex.EncodeToString(h.Sum(nil))
}
