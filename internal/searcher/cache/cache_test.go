package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-server/pkg/redis"
)

type fakeStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	ttls     map[string]time.Duration
	getErr   error
	flushErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return nil, pkgredis.ErrNil
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flushErr != nil {
		return 0, f.flushErr
	}
	var n int64
	for key := range f.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(f.data, key)
			n++
		}
	}
	return n, nil
}

func plan(t *testing.T, query string) *parser.QueryPlan {
	t.Helper()
	p, err := parser.Parse(query, tokenizer.StopWords{})
	require.NoError(t, err)
	return p
}

func TestBuildKeyNormalizesPlan(t *testing.T) {
	a := BuildKey(plan(t, "cat dog -bird"), index.StatusActual)
	b := BuildKey(plan(t, "dog -bird cat cat"), index.StatusActual)
	assert.Equal(t, a, b)
	assert.Contains(t, a, keyPrefix)

	assert.NotEqual(t, a, BuildKey(plan(t, "cat dog -bird"), index.StatusBanned))
	assert.NotEqual(t, a, BuildKey(plan(t, "cat dog bird"), index.StatusActual))
	assert.NotEqual(t,
		BuildKey(plan(t, "a,b"), index.StatusActual),
		BuildKey(plan(t, "a b"), index.StatusActual),
	)
}

func TestGetOrCompute(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	store := newFakeStore()
	c := New(store, time.Minute, m)
	ctx := context.Background()
	want := []ranker.Document{{ID: 3, Relevance: 0.25, Rating: 4}}

	calls := 0
	compute := func() ([]ranker.Document, error) {
		calls++
		return want, nil
	}

	got, hit, err := c.GetOrCompute(ctx, plan(t, "cat"), index.StatusActual, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, want, got)

	got, hit, err = c.GetOrCompute(ctx, plan(t, "cat cat"), index.StatusActual, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, time.Minute, store.ttls[BuildKey(plan(t, "cat"), index.StatusActual)])
}

func TestGetOrComputePropagatesError(t *testing.T) {
	c := New(newFakeStore(), time.Minute, nil)
	boom := errors.New("boom")

	_, _, err := c.GetOrCompute(context.Background(), plan(t, "cat"), index.StatusActual,
		func() ([]ranker.Document, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	_, ok := c.Get(context.Background(), plan(t, "cat"), index.StatusActual)
	assert.False(t, ok)
}

func TestStoreFailureIsAMiss(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	c := New(store, time.Minute, nil)

	_, ok := c.Get(context.Background(), plan(t, "cat"), index.StatusActual)
	assert.False(t, ok)
	_, misses := c.Stats()
	assert.Equal(t, int64(1), misses)
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	store := newFakeStore()
	p := plan(t, "cat")
	store.data[BuildKey(p, index.StatusActual)] = []byte("{not json")
	c := New(store, time.Minute, nil)

	_, ok := c.Get(context.Background(), p, index.StatusActual)
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	store := newFakeStore()
	store.data["other:key"] = []byte("x")
	c := New(store, time.Minute, nil)
	ctx := context.Background()

	c.Set(ctx, plan(t, "cat"), index.StatusActual, []ranker.Document{{ID: 1}})
	c.Set(ctx, plan(t, "dog"), index.StatusActual, []ranker.Document{})
	require.NoError(t, c.Invalidate(ctx))

	_, ok := c.Get(ctx, plan(t, "cat"), index.StatusActual)
	assert.False(t, ok)
	assert.Contains(t, store.data, "other:key")
}

func TestConcurrentMissesComputeOnce(t *testing.T) {
	c := New(newFakeStore(), time.Minute, nil)
	p := plan(t, "cat")
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), p, index.StatusActual, func() ([]ranker.Document, error) {
				calls.Add(1)
				<-release
				return []ranker.Document{{ID: 1}}, nil
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvalidateDuringComputeIsNotCached(t *testing.T) {
	c := New(newFakeStore(), time.Minute, nil)
	ctx := context.Background()
	p := plan(t, "cat")
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan []ranker.Document)
	go func() {
		docs, _, err := c.GetOrCompute(ctx, p, index.StatusActual, func() ([]ranker.Document, error) {
			close(started)
			<-release
			return []ranker.Document{}, nil
		})
		assert.NoError(t, err)
		done <- docs
	}()

	<-started
	require.NoError(t, c.Invalidate(ctx))

	// A search after the mutation must not join the computation above.
	docs, hit, err := c.GetOrCompute(ctx, p, index.StatusActual, func() ([]ranker.Document, error) {
		return []ranker.Document{{ID: 7}}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []ranker.Document{{ID: 7}}, docs)

	close(release)
	assert.Empty(t, <-done)

	docs, hit, err = c.GetOrCompute(ctx, p, index.StatusActual, func() ([]ranker.Document, error) {
		return nil, errors.New("should be served from cache")
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []ranker.Document{{ID: 7}}, docs)
}

func TestSetAfterInvalidateWithOldGenerationIsDropped(t *testing.T) {
	store := newFakeStore()
	c := New(store, time.Minute, nil)
	ctx := context.Background()
	p := plan(t, "cat")

	gen := c.generation.Load()
	require.NoError(t, c.Invalidate(ctx))
	c.storeAt(ctx, p, index.StatusActual, []ranker.Document{{ID: 1}}, gen)

	assert.Empty(t, store.data)
}
