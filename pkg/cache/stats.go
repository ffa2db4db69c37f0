package cache

import "sync"

// Stats is a snapshot of a cache's counters.
type Stats struct {
	Hits          uint64 `json:"hits" yaml:"hits"`
	Misses        uint64 `json:"misses" yaml:"misses"`
	Evictions     uint64 `json:"evictions" yaml:"evictions"`         // capacity-driven removals
	Invalidations uint64 `json:"invalidations" yaml:"invalidations"` // explicit removals
	Size          int    `json:"size" yaml:"size"`
}

// HitRatio returns Hits / (Hits + Misses), or 0 before any lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Lookups returns the number of recorded lookups.
func (s Stats) Lookups() uint64 {
	return s.Hits + s.Misses
}

// Add returns the field-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Hits:          s.Hits + o.Hits,
		Misses:        s.Misses + o.Misses,
		Evictions:     s.Evictions + o.Evictions,
		Invalidations: s.Invalidations + o.Invalidations,
		Size:          s.Size + o.Size,
	}
}

// counters holds the mutable statistics of one store. It has its own lock so
// recording a hit never extends the store's data critical section. When both
// are needed the data lock is taken first.
type counters struct {
	mu            sync.Mutex
	hits          uint64
	misses        uint64
	evictions     uint64
	invalidations uint64
}

func (c *counters) lookup(hit bool) {
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
}

func (c *counters) evicted(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	c.evictions += uint64(n)
	c.mu.Unlock()
}

func (c *counters) invalidated(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	c.invalidations += uint64(n)
	c.mu.Unlock()
}

func (c *counters) snapshot(size int) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Evictions:     c.evictions,
		Invalidations: c.invalidations,
		Size:          size,
	}
}

func (c *counters) reset() {
	c.mu.Lock()
	c.hits, c.misses, c.evictions, c.invalidations = 0, 0, 0, 0
	c.mu.Unlock()
}
