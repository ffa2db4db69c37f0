package cache

import (
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/devicelab-dev/guilocator/pkg/core"
	"github.com/devicelab-dev/guilocator/pkg/locator"
	"github.com/devicelab-dev/guilocator/pkg/logger"
)

// ParseCache memoizes locator parsing by source string. Failed parses are
// never stored.
type ParseCache struct {
	store *Store[string, locator.Locator]
	group singleflight.Group
	parse func(string) (locator.Locator, error)
}

// NewParseCache creates a parse cache using locator.Parse.
func NewParseCache(capacity int, ttl time.Duration, now func() time.Time) *ParseCache {
	return &ParseCache{
		store: NewStore(capacity, ttl,
			WithClock[string, locator.Locator](now),
			WithClone[string](locator.Locator.Clone),
		),
		parse: locator.Parse,
	}
}

// Parse returns the cached locator for s, parsing it on a miss. Concurrent
// misses on the same string share one parse.
func (c *ParseCache) Parse(s string) (locator.Locator, error) {
	if loc, ok := c.store.Get(s); ok {
		return loc, nil
	}

	v, err, _ := c.group.Do(s, func() (any, error) {
		loc, err := c.parse(s)
		if err != nil {
			return nil, err
		}
		c.store.Put(s, loc)
		return loc, nil
	})
	if err != nil {
		return locator.Locator{}, err
	}
	return v.(locator.Locator).Clone(), nil
}

// Get returns a cached locator without parsing.
func (c *ParseCache) Get(s string) (locator.Locator, bool) {
	return c.store.Get(s)
}

// Contains reports whether s has an unexpired entry.
func (c *ParseCache) Contains(s string) bool {
	return c.store.Contains(s)
}

// Clear drops every entry.
func (c *ParseCache) Clear() int {
	return c.store.Clear()
}

// Len returns the number of entries.
func (c *ParseCache) Len() int {
	return c.store.Len()
}

// Stats returns a snapshot of the counters.
func (c *ParseCache) Stats() Stats {
	return c.store.Stats()
}

// ResetStats zeroes the counters.
func (c *ParseCache) ResetStats() {
	c.store.ResetStats()
}

// NormalizationCache memoizes normalization with one independent store per
// toolkit, keyed by the locator's source string.
type NormalizationCache struct {
	stores  map[core.Toolkit]*Store[string, locator.NormalizedLocator]
	classes *locator.ClassMap
}

// NewNormalizationCache creates a store per toolkit with the given limits.
// A nil class map uses the built-in table.
func NewNormalizationCache(capacity int, ttl time.Duration, classes *locator.ClassMap, now func() time.Time) *NormalizationCache {
	if classes == nil {
		classes = locator.DefaultClassMap()
	}
	c := &NormalizationCache{
		stores:  make(map[core.Toolkit]*Store[string, locator.NormalizedLocator], len(core.Toolkits)),
		classes: classes,
	}
	for _, tk := range core.Toolkits {
		c.stores[tk] = NewStore(capacity, ttl,
			WithClock[string, locator.NormalizedLocator](now),
			WithClone[string](locator.NormalizedLocator.Clone),
		)
	}
	return c
}

// Normalize returns the cached normalization of loc for tk, computing it on
// a miss.
func (c *NormalizationCache) Normalize(loc locator.Locator, tk core.Toolkit) locator.NormalizedLocator {
	st, ok := c.stores[tk]
	if !ok {
		return c.classes.Normalize(loc, tk)
	}

	key := loc.Original
	if key == "" {
		key = loc.String()
	}
	if n, ok := st.Get(key); ok {
		return n
	}

	n := c.classes.Normalize(loc, tk)
	st.Put(key, n)
	return n.Clone()
}

// ClassMap returns the class map used for normalization.
func (c *NormalizationCache) ClassMap() *locator.ClassMap {
	return c.classes
}

// Stats returns the sum over all toolkit stores.
func (c *NormalizationCache) Stats() Stats {
	var total Stats
	for _, tk := range core.Toolkits {
		total = total.Add(c.stores[tk].Stats())
	}
	return total
}

// StatsFor returns the counters of one toolkit store.
func (c *NormalizationCache) StatsFor(tk core.Toolkit) Stats {
	if st, ok := c.stores[tk]; ok {
		return st.Stats()
	}
	return Stats{}
}

// Clear drops every entry in every toolkit store.
func (c *NormalizationCache) Clear() int {
	n := 0
	for _, tk := range core.Toolkits {
		n += c.stores[tk].Clear()
	}
	return n
}

// ResetStats zeroes the counters of every toolkit store.
func (c *NormalizationCache) ResetStats() {
	for _, tk := range core.Toolkits {
		c.stores[tk].ResetStats()
	}
}

// ElementCache holds element property snapshots by element id.
type ElementCache struct {
	store *Store[int64, core.ElementProperties]
}

// NewElementCache creates an element cache.
func NewElementCache(capacity int, ttl time.Duration, now func() time.Time) *ElementCache {
	return &ElementCache{
		store: NewStore(capacity, ttl,
			WithClock[int64, core.ElementProperties](now),
			WithClone[int64](core.ElementProperties.Clone),
		),
	}
}

// Get returns the snapshot for id.
func (c *ElementCache) Get(id int64) (core.ElementProperties, bool) {
	return c.store.Get(id)
}

// Put stores a snapshot under its ID.
func (c *ElementCache) Put(props core.ElementProperties) {
	c.store.Put(props.ID, props.Clone())
}

// Update mutates a cached snapshot in place and restarts its TTL. It returns
// false when the snapshot is missing or expired.
func (c *ElementCache) Update(id int64, fn func(*core.ElementProperties)) bool {
	return c.store.Update(id, fn)
}

// Invalidate drops one snapshot.
func (c *ElementCache) Invalidate(id int64) bool {
	ok := c.store.Remove(id)
	if ok {
		logger.Debug("element cache: invalidated %d", id)
	}
	return ok
}

// InvalidateMany drops several snapshots and returns how many were cached.
func (c *ElementCache) InvalidateMany(ids ...int64) int {
	n := c.store.RemoveMany(ids...)
	if n > 0 {
		logger.Debug("element cache: invalidated %d of %d ids", n, len(ids))
	}
	return n
}

// Clear drops every snapshot without counting invalidations.
func (c *ElementCache) Clear() int {
	return c.store.Clear()
}

// Len returns the number of snapshots.
func (c *ElementCache) Len() int {
	return c.store.Len()
}

// Stats returns a snapshot of the counters.
func (c *ElementCache) Stats() Stats {
	return c.store.Stats()
}

// ResetStats zeroes the counters.
func (c *ElementCache) ResetStats() {
	c.store.ResetStats()
}

// FinderCache holds the element ids a raw locator string resolved to.
type FinderCache struct {
	store *Store[string, []int64]
}

// NewFinderCache creates a finder cache.
func NewFinderCache(capacity int, ttl time.Duration, now func() time.Time) *FinderCache {
	return &FinderCache{
		store: NewStore(capacity, ttl,
			WithClock[string, []int64](now),
			WithClone[string](slices.Clone[[]int64]),
		),
	}
}

// Get returns the ids cached for a locator string.
func (c *FinderCache) Get(loc string) ([]int64, bool) {
	return c.store.Get(loc)
}

// Put stores the ids a locator string resolved to, in order.
func (c *FinderCache) Put(loc string, ids []int64) {
	c.store.Put(loc, slices.Clone(ids))
}

// Invalidate drops the entry for one locator string.
func (c *FinderCache) Invalidate(loc string) bool {
	return c.store.Remove(loc)
}

// InvalidateAll drops every entry, counting each as an invalidation. Call it
// whenever the UI may have changed.
func (c *FinderCache) InvalidateAll() int {
	n := c.store.Clear()
	c.store.stats.invalidated(n)
	if n > 0 {
		logger.Debug("finder cache: invalidated %d entries", n)
	}
	return n
}

// Clear drops every entry without counting invalidations.
func (c *FinderCache) Clear() int {
	return c.store.Clear()
}

// Len returns the number of entries.
func (c *FinderCache) Len() int {
	return c.store.Len()
}

// Stats returns a snapshot of the counters.
func (c *FinderCache) Stats() Stats {
	return c.store.Stats()
}

// ResetStats zeroes the counters.
func (c *FinderCache) ResetStats() {
	c.store.ResetStats()
}
