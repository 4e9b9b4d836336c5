// Package cache stores ranked search results in Redis. Keys are derived from
// the parsed query, so queries differing only in term order or repetition
// share an entry. Any index mutation must call Invalidate.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-server/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the subset of the Redis client the cache uses. Get must return an
// error satisfying pkgredis.IsNilError for a missing key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// QueryCache results are tagged with the invalidation generation they were
// computed in. A result whose generation was superseded while it was being
// computed is returned to its callers but never stored.
type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64

	// writeMu orders stores against Invalidate: a store holding the read
	// lock either lands before the flush or sees the bumped generation.
	writeMu    sync.RWMutex
	generation atomic.Uint64
}

// New returns a cache over store. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get looks up the results for plan filtered by status.
func (c *QueryCache) Get(ctx context.Context, plan *parser.QueryPlan, status index.Status) ([]ranker.Document, bool) {
	key := BuildKey(plan, status)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		switch {
		case pkgredis.IsNilError(err):
		case errors.Is(err, resilience.ErrCircuitOpen):
			c.logger.Debug("cache skipped", "key", key, "error", err)
		default:
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var docs []ranker.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.CacheHit()
	c.logger.Debug("cache hit", "query", plan.RawQuery, "key", key)
	return docs, true
}

// Set stores docs for plan filtered by status.
func (c *QueryCache) Set(ctx context.Context, plan *parser.QueryPlan, status index.Status, docs []ranker.Document) {
	c.storeAt(ctx, plan, status, docs, c.generation.Load())
}

// storeAt writes docs unless Invalidate ran after generation gen was read.
func (c *QueryCache) storeAt(ctx context.Context, plan *parser.QueryPlan, status index.Status, docs []ranker.Document, gen uint64) {
	key := BuildKey(plan, status)
	data, err := json.Marshal(docs)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	c.writeMu.RLock()
	defer c.writeMu.RUnlock()
	if c.generation.Load() != gen {
		c.logger.Debug("cache store skipped, index changed", "key", key)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns cached results or runs compute, collapsing concurrent
// misses for the same key into one computation. The bool reports a hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	plan *parser.QueryPlan,
	status index.Status,
	compute func() ([]ranker.Document, error),
) ([]ranker.Document, bool, error) {
	gen := c.generation.Load()
	if docs, ok := c.Get(ctx, plan, status); ok {
		return docs, true, nil
	}
	// Callers arriving after an invalidation must not join a computation
	// that may have read the index before it changed.
	flightKey := BuildKey(plan, status) + "@" + strconv.FormatUint(gen, 10)
	val, err, _ := c.group.Do(flightKey, func() (any, error) {
		docs, err := compute()
		if err != nil {
			return nil, err
		}
		c.storeAt(ctx, plan, status, docs, gen)
		return docs, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]ranker.Document), false, nil
}

// Invalidate drops every cached result and prevents in-flight computations
// from storing theirs. Call it after every index mutation.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.generation.Add(1)
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	c.metrics.CacheMiss()
}

// BuildKey hashes the normalized plan. Plans from parser.Parse are already
// sorted and duplicate-free. Terms never hold control characters, so the
// unit separator cannot collide with term text.
func BuildKey(plan *parser.QueryPlan, status index.Status) string {
	raw := fmt.Sprintf("+%s\x1e-%s\x1estatus=%s",
		strings.Join(plan.PlusTerms, "\x1f"),
		strings.Join(plan.MinusTerms, "\x1f"),
		status,
	)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
