package cache

import (
	"context"
	"sync"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/search-server/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/resilience"
)

// GuardedStore wraps a Store with a circuit breaker so a failing Redis is
// skipped instead of being waited on by every search. Misses count as
// successes.
//
// A flush that fails or is rejected is remembered and replayed before the
// next call that reaches the store, so entries written before a mutation are
// never served after Redis comes back.
type GuardedStore struct {
	store Store
	cb    *resilience.CircuitBreaker

	mu      sync.Mutex
	pending map[string]struct{}
}

func NewGuardedStore(store Store, cb *resilience.CircuitBreaker) *GuardedStore {
	return &GuardedStore{
		store:   store,
		cb:      cb,
		pending: make(map[string]struct{}),
	}
}

func (g *GuardedStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	miss := false
	err := g.cb.Execute(func() error {
		if err := g.replayFlushes(ctx); err != nil {
			return err
		}
		d, err := g.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			miss = true
			return nil
		}
		data = d
		return err
	})
	if err != nil {
		return nil, err
	}
	if miss {
		return nil, pkgredis.ErrNil
	}
	return data, nil
}

func (g *GuardedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.cb.Execute(func() error {
		if err := g.replayFlushes(ctx); err != nil {
			return err
		}
		return g.store.Set(ctx, key, value, ttl)
	})
}

func (g *GuardedStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	err := g.cb.Execute(func() error {
		if err := g.replayFlushes(ctx); err != nil {
			return err
		}
		n, err := g.store.FlushByPattern(ctx, pattern)
		deleted = n
		return err
	})
	if err != nil {
		g.mu.Lock()
		g.pending[pattern] = struct{}{}
		g.mu.Unlock()
		return deleted, err
	}
	return deleted, nil
}

// Pending reports whether a failed flush is waiting to be replayed.
func (g *GuardedStore) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending) > 0
}

func (g *GuardedStore) replayFlushes(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for pattern := range g.pending {
		if _, err := g.store.FlushByPattern(ctx, pattern); err != nil {
			return err
		}
		delete(g.pending, pattern)
	}
	return nil
}
