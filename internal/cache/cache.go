// Package cache provides the concurrency-safe map behind the result cache.
//
// Entries are never evicted by the map itself; they live as long as the Map
// does. Keys are spread over a fixed number of shards chosen by xxhash so
// that unrelated keys rarely contend for the same lock.
package cache

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/querypipe/internal/record"
)

// DefaultShards is the shard count used when none is configured.
const DefaultShards = 32

type shard[T any] struct {
	mu      sync.RWMutex
	entries map[record.Key]T
}

// Map is a sharded map from record.Key to T.
//
// Thread-safety: All methods are safe for concurrent use.
type Map[T any] struct {
	shards []*shard[T]
	mask   uint64
}

// Option configures a Map.
type Option func(*settings)

type settings struct {
	shards int
}

// WithShards sets the shard count, rounded up to a power of two.
func WithShards(n int) Option {
	return func(s *settings) {
		s.shards = n
	}
}

// New creates an empty Map.
func New[T any](opts ...Option) *Map[T] {
	s := settings{shards: DefaultShards}
	for _, opt := range opts {
		opt(&s)
	}
	n := roundPow2(s.shards)

	m := &Map[T]{
		shards: make([]*shard[T], n),
		mask:   uint64(n - 1),
	}
	for i := range m.shards {
		m.shards[i] = &shard[T]{entries: make(map[record.Key]T)}
	}
	return m
}

func roundPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func (m *Map[T]) shardFor(key record.Key) *shard[T] {
	return m.shards[xxhash.Sum64String(string(key))&m.mask]
}

// Get returns the value stored for key.
func (m *Map[T]) Get(key record.Key) (T, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

// Set stores v under key, replacing any previous value.
func (m *Map[T]) Set(key record.Key, v T) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = v
}

// Delete removes key. It reports whether the key was present.
func (m *Map[T]) Delete(key record.Key) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok
}

// Len returns the number of entries. Concurrent writers may make the result
// stale by the time it returns.
func (m *Map[T]) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Clear removes every entry.
func (m *Map[T]) Clear() {
	for _, s := range m.shards {
		s.mu.Lock()
		clear(s.entries)
		s.mu.Unlock()
	}
}

// Shards returns the shard count.
func (m *Map[T]) Shards() int {
	return len(m.shards)
}

func (m *Map[T]) String() string {
	return fmt.Sprintf("cache.Map{shards=%d, len=%d}", len(m.shards), m.Len())
}
