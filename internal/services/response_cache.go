package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"neverlost/internal/telemetry"

	"github.com/maypok86/otter"
	"github.com/redis/go-redis/v9"
)

// CachedResponse is a successful origin response kept for reuse.
type CachedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// ResponseCache stores successful origin responses keyed by origin URL.
// Implementations treat every failure as a miss.
type ResponseCache interface {
	Get(ctx context.Context, key string) (CachedResponse, bool)
	Set(ctx context.Context, key string, resp CachedResponse, ttl time.Duration)
}

// MemoryResponseCache is a bounded in-process cache.
type MemoryResponseCache struct {
	cache otter.CacheWithVariableTTL[string, CachedResponse]
}

func NewMemoryResponseCache(maxEntries int) (*MemoryResponseCache, error) {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	cache, err := otter.MustBuilder[string, CachedResponse](maxEntries).
		Cost(func(_ string, _ CachedResponse) uint32 { return 1 }).
		WithVariableTTL().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build response cache: %w", err)
	}
	return &MemoryResponseCache{cache: cache}, nil
}

func (m *MemoryResponseCache) Get(_ context.Context, key string) (CachedResponse, bool) {
	return m.cache.Get(key)
}

func (m *MemoryResponseCache) Set(_ context.Context, key string, resp CachedResponse, ttl time.Duration) {
	m.cache.Set(key, resp, ttl)
}

const redisKeyPrefix = "neverlost:upstream:"

// RedisResponseCache shares cached origin responses across instances.
type RedisResponseCache struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewRedisResponseCache(rdb *redis.Client, logger *slog.Logger) *RedisResponseCache {
	return &RedisResponseCache{rdb: rdb, logger: logger}
}

func (r *RedisResponseCache) Get(ctx context.Context, key string) (CachedResponse, bool) {
	var resp CachedResponse
	raw, err := r.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("Response cache read failed", "error", err)
		}
		return resp, false
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		r.logger.Warn("Response cache entry corrupt", "error", err)
		return resp, false
	}
	return resp, true
}

func (r *RedisResponseCache) Set(ctx context.Context, key string, resp CachedResponse, ttl time.Duration) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		r.logger.Warn("Response cache write failed", "error", err)
	}
}

type namedCache struct {
	name  string
	cache ResponseCache
}

// TieredResponseCache consults layers in order. A hit in a later layer is
// copied into the earlier ones.
type TieredResponseCache struct {
	layers []namedCache
	ttl    time.Duration
}

func NewTieredResponseCache(ttl time.Duration) *TieredResponseCache {
	return &TieredResponseCache{ttl: ttl}
}

// With appends a layer. Nil caches are skipped.
func (t *TieredResponseCache) With(name string, cache ResponseCache) *TieredResponseCache {
	if cache != nil {
		t.layers = append(t.layers, namedCache{name: name, cache: cache})
	}
	return t
}

func (t *TieredResponseCache) Get(ctx context.Context, key string) (CachedResponse, bool) {
	for i, layer := range t.layers {
		resp, ok := layer.cache.Get(ctx, key)
		if !ok {
			continue
		}
		telemetry.UpstreamCacheHitsTotal.WithLabelValues(layer.name).Inc()
		for _, earlier := range t.layers[:i] {
			earlier.cache.Set(ctx, key, resp, t.ttl)
		}
		return resp, true
	}
	telemetry.UpstreamCacheMissesTotal.Inc()
	return CachedResponse{}, false
}

func (t *TieredResponseCache) Set(ctx context.Context, key string, resp CachedResponse, ttl time.Duration) {
	for _, layer := range t.layers {
		layer.cache.Set(ctx, key, resp, ttl)
	}
}
