package cache

import (
	"context"
	"time"

	"github.com/devedd/neurochat/internal/metrics"
	"go.uber.org/zap"
)

// Store is the subset of the cache client the orchestrator needs.
type Store interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	AddToIndex(ctx context.Context, index, key string, ttl time.Duration) error
	InvalidateIndex(ctx context.Context, index string) error
}

// Source tells the client where a read was served from.
type Source string

const (
	SourceCache   Source = "Cache"
	SourcePrimary Source = "Primary"
)

// Loader performs the authoritative read. A nil result means "absent".
type Loader[T any] func(ctx context.Context) (*T, error)

// FetchCacheFirst returns the cached value for key, or calls load and writes a
// non-nil result back with ttl. Absent results are not cached. When indexes are
// given, the key is registered under each so list invalidation can find it.
func FetchCacheFirst[T any](ctx context.Context, store Store, log *zap.Logger, key string, ttl time.Duration, load Loader[T], indexes ...string) (*T, Source, error) {
	ns := Namespace(key)

	var cached T
	hit, err := store.GetJSON(ctx, key, &cached)
	if err != nil {
		return nil, "", err
	}
	if hit {
		metrics.CacheLookups.WithLabelValues(ns, "hit").Inc()
		log.Debug("cache hit", zap.String("key", key))
		return &cached, SourceCache, nil
	}

	log.Debug("cache miss", zap.String("key", key))
	v, err := load(ctx)
	if err != nil {
		return nil, "", err
	}
	if v == nil {
		metrics.CacheLookups.WithLabelValues(ns, "absent").Inc()
		return nil, SourcePrimary, nil
	}
	metrics.CacheLookups.WithLabelValues(ns, "miss").Inc()

	// a key missing from its index could never be invalidated, so it is only
	// stored once every index holds it
	for _, idx := range indexes {
		if err := store.AddToIndex(ctx, idx, key, ttl); err != nil {
			log.Warn("cache index add failed, skipping cache write", zap.String("key", key), zap.String("index", idx), zap.Error(err))
			return v, SourcePrimary, nil
		}
	}
	if err := store.SetJSON(ctx, key, v, ttl); err != nil {
		return nil, "", err
	}
	log.Debug("cached", zap.String("key", key), zap.Duration("ttl", ttl))
	return v, SourcePrimary, nil
}

// WriteThrough refreshes the single-entity key after a committed write.
func WriteThrough(ctx context.Context, store Store, key string, v any, ttl time.Duration) error {
	return store.SetJSON(ctx, key, v, ttl)
}

// Invalidate deletes single keys and every list registered under the given indexes.
func Invalidate(ctx context.Context, store Store, keys []string, indexes ...string) error {
	if len(keys) > 0 {
		if err := store.Delete(ctx, keys...); err != nil {
			return err
		}
		for _, k := range keys {
			metrics.CacheInvalidations.WithLabelValues(Namespace(k)).Inc()
		}
	}
	for _, idx := range indexes {
		if err := store.InvalidateIndex(ctx, idx); err != nil {
			return err
		}
		metrics.CacheInvalidations.WithLabelValues(Namespace(idx)).Inc()
	}
	return nil
}
