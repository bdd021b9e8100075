// Package stats accumulates per-bucket call counts and cumulative durations.
package stats

import (
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v2"
)

// Entry is one bucket of a snapshot.
type Entry struct {
	Key   string
	Count int64
	Total time.Duration
}

type counter struct {
	count int64
	total time.Duration
}

// Store maps a bucket label to its call count and total duration. Entries are
// only ever incremented and are kept in order of first occurrence.
// A Store is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries *orderedmap.OrderedMap[string, *counter]
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries: orderedmap.NewOrderedMap[string, *counter](),
	}
}

var defaultStore = NewStore()

// Default returns the process-wide store.
func Default() *Store {
	return defaultStore
}

// Record adds one call of duration d to the bucket key, creating the bucket
// on first use.
func (s *Store) Record(key string, d time.Duration) {
	if d < 0 {
		d = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.entries.Get(key)
	if !ok {
		c = &counter{}
		s.entries.Set(key, c)
	}
	c.count++
	c.total += d
}

// Snapshot returns a copy of every bucket in order of first occurrence.
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, s.entries.Len())
	for el := s.entries.Front(); el != nil; el = el.Next() {
		out = append(out, Entry{
			Key:   el.Key,
			Count: el.Value.count,
			Total: el.Value.total,
		})
	}
	return out
}

// Len returns the number of buckets.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

// Reset drops every bucket.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = orderedmap.NewOrderedMap[string, *counter]()
}
