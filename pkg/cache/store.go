package cache

import (
	"sync"
	"time"
)

// Store is a fixed-capacity LRU cache with lazy TTL expiry and statistics.
// Expired entries read as misses but keep their slot until overwritten,
// removed or evicted; there is no background sweeper.
//
// A Store must be created with NewStore; the zero value is not ready for use.
type Store[K comparable, V any] struct {
	capacity int
	ttl      time.Duration
	items    map[K]*entry[K, V]
	head     *entry[K, V] // most recently used
	tail     *entry[K, V] // least recently used
	mu       sync.RWMutex

	stats counters

	timeNow func() time.Time
	clone   func(V) V
}

// entry is an intrusive doubly-linked list node.
type entry[K comparable, V any] struct {
	key     K
	val     V
	created time.Time
	prev    *entry[K, V]
	next    *entry[K, V]
}

// StoreOption configures a Store.
type StoreOption[K comparable, V any] func(*Store[K, V])

// WithClock replaces time.Now. Used by tests to step time.
func WithClock[K comparable, V any](now func() time.Time) StoreOption[K, V] {
	return func(s *Store[K, V]) {
		if now != nil {
			s.timeNow = now
		}
	}
}

// WithClone sets the function applied to values returned from the store, so
// callers never share mutable state with cached entries.
func WithClone[K comparable, V any](clone func(V) V) StoreOption[K, V] {
	return func(s *Store[K, V]) {
		s.clone = clone
	}
}

// NewStore creates a store. A capacity below 1 is raised to 1; a ttl of zero
// or less disables expiry.
func NewStore[K comparable, V any](capacity int, ttl time.Duration, opts ...StoreOption[K, V]) *Store[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	s := &Store[K, V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[K]*entry[K, V], capacity),
		timeNow:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store[K, V]) expired(e *entry[K, V], now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.created) > s.ttl
}

func (s *Store[K, V]) out(v V) V {
	if s.clone != nil {
		return s.clone(v)
	}
	return v
}

// Get returns the value for key and marks it most recently used. An expired
// entry is a miss and is not promoted.
func (s *Store[K, V]) Get(key K) (V, bool) {
	var zero V
	now := s.timeNow()

	s.mu.Lock()
	e, found := s.items[key]
	if !found || s.expired(e, now) {
		s.mu.Unlock()
		s.stats.lookup(false)
		return zero, false
	}
	s.moveToFront(e)
	val := s.out(e.val)
	s.mu.Unlock()

	s.stats.lookup(true)
	return val, true
}

// Peek returns the value for key without changing recency. It takes only the
// read lock, so concurrent Peeks do not contend.
func (s *Store[K, V]) Peek(key K) (V, bool) {
	var zero V
	now := s.timeNow()

	s.mu.RLock()
	e, found := s.items[key]
	if !found || s.expired(e, now) {
		s.mu.RUnlock()
		s.stats.lookup(false)
		return zero, false
	}
	val := s.out(e.val)
	s.mu.RUnlock()

	s.stats.lookup(true)
	return val, true
}

// Contains reports whether key holds an unexpired value. No statistics are
// recorded.
func (s *Store[K, V]) Contains(key K) bool {
	now := s.timeNow()

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, found := s.items[key]
	return found && !s.expired(e, now)
}

// Put inserts or replaces the value for key and resets its age. When a new
// key is added at capacity the least recently used entry is evicted.
func (s *Store[K, V]) Put(key K, value V) {
	now := s.timeNow()

	s.mu.Lock()
	if e, found := s.items[key]; found {
		e.val = value
		e.created = now
		s.moveToFront(e)
		s.mu.Unlock()
		return
	}

	evicted := 0
	if len(s.items) >= s.capacity {
		if oldest := s.tail; oldest != nil {
			s.remove(oldest)
			delete(s.items, oldest.key)
			evicted++
		}
	}

	e := &entry[K, V]{key: key, val: value, created: now}
	s.pushFront(e)
	s.items[key] = e
	s.mu.Unlock()

	s.stats.evicted(evicted)
}

// Update applies fn to the cached value in place and resets its age. It does
// nothing and returns false when key is absent or expired.
func (s *Store[K, V]) Update(key K, fn func(*V)) bool {
	now := s.timeNow()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.items[key]
	if !found || s.expired(e, now) {
		return false
	}
	fn(&e.val)
	e.created = now
	return true
}

// Remove deletes key and reports whether it was present. Removals count as
// invalidations.
func (s *Store[K, V]) Remove(key K) bool {
	s.mu.Lock()
	e, found := s.items[key]
	if found {
		delete(s.items, key)
		s.remove(e)
	}
	s.mu.Unlock()

	if found {
		s.stats.invalidated(1)
	}
	return found
}

// RemoveMany deletes every given key and returns how many were present.
func (s *Store[K, V]) RemoveMany(keys ...K) int {
	n := 0
	s.mu.Lock()
	for _, key := range keys {
		if e, found := s.items[key]; found {
			delete(s.items, key)
			s.remove(e)
			n++
		}
	}
	s.mu.Unlock()

	s.stats.invalidated(n)
	return n
}

// Clear drops every entry and returns how many were dropped. Counters are
// left untouched.
func (s *Store[K, V]) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.items)
	s.items = make(map[K]*entry[K, V], s.capacity)
	s.head = nil
	s.tail = nil
	return n
}

// Len returns the number of entries, expired ones included.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Capacity returns the maximum number of entries.
func (s *Store[K, V]) Capacity() int {
	return s.capacity
}

// TTL returns the entry lifetime; zero or less means entries never expire.
func (s *Store[K, V]) TTL() time.Duration {
	return s.ttl
}

// Stats returns a snapshot of the counters and current size.
func (s *Store[K, V]) Stats() Stats {
	return s.stats.snapshot(s.Len())
}

// ResetStats zeroes the counters.
func (s *Store[K, V]) ResetStats() {
	s.stats.reset()
}

// Keys returns the keys from most to least recently used.
func (s *Store[K, V]) Keys() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]K, 0, len(s.items))
	for e := s.head; e != nil; e = e.next {
		keys = append(keys, e.key)
	}
	return keys
}

// moveToFront moves an entry to the front of the list.
func (s *Store[K, V]) moveToFront(e *entry[K, V]) {
	if s.head == e {
		return
	}
	s.remove(e)
	s.pushFront(e)
}

// pushFront adds an entry to the front of the list.
func (s *Store[K, V]) pushFront(e *entry[K, V]) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

// remove unlinks an entry from the list.
func (s *Store[K, V]) remove(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}
