// Package cache provides the bounded read-through caches owned by a pipeline run.
// Entries are written once per key and evicted least-recently-used when full.
// Owners purge them when a new run starts.
package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ternarybob/arbor"
)

// DefaultCapacity matches the size of the memo tables the lookups have always used.
const DefaultCapacity = 100

// Store is a bounded LRU cache with a read-through helper.
type Store[V any] struct {
	name   string
	lru    *lru.Cache[string, V]
	logger arbor.ILogger
}

// New creates a named store holding at most capacity entries.
func New[V any](name string, capacity int, logger arbor.ILogger) *Store[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	// lru.New only fails for a non-positive size
	c, _ := lru.New[string, V](capacity)
	return &Store[V]{
		name:   name,
		lru:    c,
		logger: logger,
	}
}

// Get returns the cached value for key.
func (s *Store[V]) Get(key string) (V, bool) {
	return s.lru.Get(key)
}

// Add stores value under key unless the key is already present.
func (s *Store[V]) Add(key string, value V) {
	s.lru.ContainsOrAdd(key, value)
}

// Len returns the number of cached entries.
func (s *Store[V]) Len() int {
	return s.lru.Len()
}

// Purge drops every entry.
func (s *Store[V]) Purge() {
	s.lru.Purge()
}

// GetOrLoad returns the cached value for key, or calls load and caches its result.
// A result produced after ctx is done is returned but not cached.
func (s *Store[V]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) V) V {
	if v, ok := s.lru.Get(key); ok {
		if s.logger != nil {
			s.logger.Debug().
				Str("cache", s.name).
				Str("key", key).
				Msg("Cache hit")
		}
		return v
	}

	v := load(ctx)
	if err := ctx.Err(); err != nil {
		if s.logger != nil {
			s.logger.Debug().
				Err(err).
				Str("cache", s.name).
				Str("key", key).
				Msg("Context done, result not cached")
		}
		return v
	}
	s.Add(key, v)
	return v
}
