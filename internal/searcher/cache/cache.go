// Package cache keeps ranked search hits in Redis, keyed by collection
// index version, so a rebuilt index never serves stale results.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/ranker"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/metrics"
	pkgredis "github.com/kikaihonyaku/cocosumo-sub004/pkg/redis"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the key-value backend. *redis.Client satisfies it; Get must
// return redis.ErrMiss for absent keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// Hit is one cached ranked result.
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Key identifies one cacheable search.
type Key struct {
	Collection string
	Version    string
	Query      string
	Options    ranker.Options
}

// ResultCache caches search hits. Backend failures are logged and treated
// as misses; after repeated failures a circuit breaker skips the backend
// until it recovers.
type ResultCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.Breaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// breakerConfig stops calls to the store after five straight failures and
// probes it again after 30 seconds.
var breakerConfig = resilience.BreakerConfig{FailureThreshold: 5, ResetTimeout: 30 * time.Second}

// New creates a ResultCache. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *ResultCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ResultCache{
		store:   store,
		ttl:     ttl,
		breaker: resilience.NewBreaker("result-cache", breakerConfig),
		metrics: m,
		logger:  slog.Default().With("component", "result-cache"),
	}
}

// GetOrCompute returns the cached hits for key, or runs compute, stores its
// result and returns it. Concurrent misses on the same key share a single
// compute. The boolean reports a cache hit.
func (c *ResultCache) GetOrCompute(ctx context.Context, key Key, compute func() []Hit) ([]Hit, bool) {
	k := c.buildKey(key)
	if hits, ok := c.get(ctx, k); ok {
		return hits, true
	}
	v, _, _ := c.group.Do(k, func() (any, error) {
		hits := compute()
		c.set(ctx, k, hits)
		return hits, nil
	})
	return v.([]Hit), false
}

// InvalidateVersion drops every entry of one index version of a
// collection.
func (c *ResultCache) InvalidateVersion(ctx context.Context, collection, version string) error {
	prefix := collectionPrefix(collection) + version + ":"
	deleted, err := c.store.DeletePrefix(ctx, prefix)
	if err != nil {
		return fmt.Errorf("invalidating %s: %w", prefix, err)
	}
	c.logger.Info("cache invalidated", "collection", collection, "version", version, "keys_deleted", deleted)
	return nil
}

// Stats returns process-local hit and miss counts.
func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ResultCache) get(ctx context.Context, key string) ([]Hit, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if errors.Is(err, pkgredis.ErrMiss) {
			return nil
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return nil, false
	}
	if data == nil {
		c.recordMiss()
		return nil, false
	}
	var hits []Hit
	if err := json.Unmarshal(data, &hits); err != nil {
		c.logger.Warn("cache entry corrupt", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return hits, true
}

func (c *ResultCache) set(ctx context.Context, key string, hits []Hit) {
	data, err := json.Marshal(hits)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

func (c *ResultCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *ResultCache) buildKey(key Key) string {
	o := key.Options
	raw := fmt.Sprintf("%s|limit=%d|th=%g|fuzzy=%t|fth=%g|boost=%g",
		normalizeQuery(key.Query), o.Limit, o.Threshold, o.Fuzzy, o.FuzzyThreshold, o.BoostExact)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", collectionPrefix(key.Collection), key.Version, sum[:16])
}

func collectionPrefix(collection string) string {
	return keyPrefix + collection + ":"
}

// normalizeQuery folds case and whitespace, which the query tokenizer
// ignores anyway.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// FromResults converts ranked results into cacheable hits.
func FromResults[T any](results []ranker.Result[T]) []Hit {
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{ID: r.ID, Score: r.Score}
	}
	return hits
}
