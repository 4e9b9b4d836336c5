package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/ranker"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-server/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/resilience"
)

func TestGuardedStoreMissesDoNotTrip(t *testing.T) {
	cb := resilience.NewCircuitBreaker("cache", resilience.CircuitBreakerConfig{FailureThreshold: 1})
	g := NewGuardedStore(newFakeStore(), cb)

	for i := 0; i < 3; i++ {
		_, err := g.Get(context.Background(), "search:missing")
		assert.True(t, pkgredis.IsNilError(err))
	}
	assert.Equal(t, resilience.StateClosed, cb.State())
}

func TestGuardedStoreOpensOnFailures(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	cb := resilience.NewCircuitBreaker("cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	})
	c := New(NewGuardedStore(store, cb), time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, ok := c.Get(ctx, plan(t, "cat"), index.StatusActual)
		assert.False(t, ok)
	}
	assert.Equal(t, resilience.StateOpen, cb.State())

	_, err := c.store.Get(ctx, "search:x")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestGuardedStoreReplaysFailedFlush(t *testing.T) {
	store := newFakeStore()
	cb := resilience.NewCircuitBreaker("cache", resilience.CircuitBreakerConfig{FailureThreshold: 10})
	g := NewGuardedStore(store, cb)
	c := New(g, time.Minute, nil)
	ctx := context.Background()

	c.Set(ctx, plan(t, "cat"), index.StatusActual, []ranker.Document{{ID: 1}})

	store.flushErr = errors.New("timeout")
	assert.Error(t, c.Invalidate(ctx))
	assert.True(t, g.Pending())

	store.flushErr = nil
	_, ok := c.Get(ctx, plan(t, "cat"), index.StatusActual)
	assert.False(t, ok, "stale entry must be flushed before the next read")
	assert.False(t, g.Pending())

	c.Set(ctx, plan(t, "cat"), index.StatusActual, []ranker.Document{{ID: 2}})
	docs, ok := c.Get(ctx, plan(t, "cat"), index.StatusActual)
	require.True(t, ok)
	assert.Equal(t, 2, docs[0].ID)
}
