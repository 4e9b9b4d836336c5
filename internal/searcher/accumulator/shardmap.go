// Package accumulator provides ShardMap, a key -> running value store that
// many goroutines can update at once. The key space is split across a fixed
// number of shards, each behind its own mutex, so updates to different
// shards never contend.
package accumulator

import (
	"cmp"
	"slices"
	"sync"
)

// Key is any integer type; keys are assigned to shard key mod shard count.
type Key interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Value is any numeric type that supports +=.
type Value interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64 | ~float32 | ~float64
}

type Entry[K Key, V Value] struct {
	Key   K
	Value V
}

type shard[K Key, V Value] struct {
	mu sync.Mutex
	m  map[K]V
}

type ShardMap[K Key, V Value] struct {
	shards []shard[K, V]
}

// New creates a ShardMap with shardCount shards (at least one).
func New[K Key, V Value](shardCount int) *ShardMap[K, V] {
	if shardCount < 1 {
		shardCount = 1
	}
	s := &ShardMap[K, V]{shards: make([]shard[K, V], shardCount)}
	for i := range s.shards {
		s.shards[i].m = make(map[K]V)
	}
	return s
}

func (s *ShardMap[K, V]) shardFor(key K) *shard[K, V] {
	// The conversion wraps negative keys, which keeps the mapping stable.
	return &s.shards[uint64(key)%uint64(len(s.shards))]
}

// Update fetches the slot for key, creating it with the zero value if
// needed, and calls fn with a pointer to it while the shard is locked.
func (s *ShardMap[K, V]) Update(key K, fn func(v *V)) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v := sh.m[key]
	fn(&v)
	sh.m[key] = v
}

// Add accumulates delta into key's slot.
func (s *ShardMap[K, V]) Add(key K, delta V) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.m[key] += delta
	sh.mu.Unlock()
}

// Erase removes key. Erasing an absent key is a no-op.
func (s *ShardMap[K, V]) Erase(key K) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	delete(sh.m, key)
	sh.mu.Unlock()
}

// Get returns key's current value.
func (s *ShardMap[K, V]) Get(key K) (V, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v, ok := sh.m[key]
	return v, ok
}

func (s *ShardMap[K, V]) ShardCount() int {
	return len(s.shards)
}

// lockAll locks every shard in index order; unlockAll releases them.
func (s *ShardMap[K, V]) lockAll() {
	for i := range s.shards {
		s.shards[i].mu.Lock()
	}
}

func (s *ShardMap[K, V]) unlockAll() {
	for i := range s.shards {
		s.shards[i].mu.Unlock()
	}
}

func (s *ShardMap[K, V]) Len() int {
	s.lockAll()
	defer s.unlockAll()
	n := 0
	for i := range s.shards {
		n += len(s.shards[i].m)
	}
	return n
}

// Flatten merges all shards into one map. Every shard is held for the whole
// copy, so the result is a single point-in-time state.
func (s *ShardMap[K, V]) Flatten() map[K]V {
	s.lockAll()
	defer s.unlockAll()
	n := 0
	for i := range s.shards {
		n += len(s.shards[i].m)
	}
	out := make(map[K]V, n)
	for i := range s.shards {
		for k, v := range s.shards[i].m {
			out[k] = v
		}
	}
	return out
}

// Entries is Flatten ordered by ascending key.
func (s *ShardMap[K, V]) Entries() []Entry[K, V] {
	flat := s.Flatten()
	entries := make([]Entry[K, V], 0, len(flat))
	for k, v := range flat {
		entries = append(entries, Entry[K, V]{Key: k, Value: v})
	}
	slices.SortFunc(entries, func(a, b Entry[K, V]) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return entries
}
