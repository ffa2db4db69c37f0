// Package cache provides the locator caches: parsed locators, per-toolkit
// normalizations, element property snapshots and finder results. Each layer
// is a bounded LRU store with lazy TTL expiry and its own statistics.
//
// Construct a Caches handle with New and share it. Default returns a lazily
// built process-wide handle for callers that need no configuration.
package cache

import (
	"sync"
	"time"

	"github.com/devicelab-dev/guilocator/pkg/core"
	"github.com/devicelab-dev/guilocator/pkg/locator"
	"github.com/devicelab-dev/guilocator/pkg/logger"
)

// Default limits per layer.
const (
	DefaultParseCapacity     = 1000
	DefaultParseTTL          = 5 * time.Minute
	DefaultNormalizeCapacity = 1000
	DefaultNormalizeTTL      = 5 * time.Minute
	DefaultElementCapacity   = 500
	DefaultElementTTL        = 10 * time.Second
	DefaultFinderCapacity    = 100
	DefaultFinderTTL         = 5 * time.Second
)

// Limits sizes one cache layer. Zero fields take the layer default; a
// negative TTL disables expiry.
type Limits struct {
	Capacity int
	TTL      time.Duration
}

func (l Limits) orDefault(capacity int, ttl time.Duration) Limits {
	if l.Capacity == 0 {
		l.Capacity = capacity
	}
	if l.TTL == 0 {
		l.TTL = ttl
	}
	return l
}

// Config configures a Caches handle.
type Config struct {
	Parse     Limits
	Normalize Limits
	Element   Limits
	Finder    Limits

	// ClassMap used for normalization; nil means the built-in table.
	ClassMap *locator.ClassMap

	// Clock replaces time.Now in every layer. Used by tests.
	Clock func() time.Time
}

// DefaultConfig returns the default limits for every layer.
func DefaultConfig() Config {
	return Config{
		Parse:     Limits{Capacity: DefaultParseCapacity, TTL: DefaultParseTTL},
		Normalize: Limits{Capacity: DefaultNormalizeCapacity, TTL: DefaultNormalizeTTL},
		Element:   Limits{Capacity: DefaultElementCapacity, TTL: DefaultElementTTL},
		Finder:    Limits{Capacity: DefaultFinderCapacity, TTL: DefaultFinderTTL},
	}
}

// Caches owns one instance of every cache layer. The layers are independent:
// no operation holds locks on two of them at once.
type Caches struct {
	Parse     *ParseCache
	Normalize *NormalizationCache
	Element   *ElementCache
	Finder    *FinderCache
}

// New builds a Caches handle.
func New(cfg Config) *Caches {
	p := cfg.Parse.orDefault(DefaultParseCapacity, DefaultParseTTL)
	n := cfg.Normalize.orDefault(DefaultNormalizeCapacity, DefaultNormalizeTTL)
	e := cfg.Element.orDefault(DefaultElementCapacity, DefaultElementTTL)
	f := cfg.Finder.orDefault(DefaultFinderCapacity, DefaultFinderTTL)

	logger.Debug("caches: parse=%d/%s normalize=%d/%s element=%d/%s finder=%d/%s",
		p.Capacity, p.TTL, n.Capacity, n.TTL, e.Capacity, e.TTL, f.Capacity, f.TTL)

	return &Caches{
		Parse:     NewParseCache(p.Capacity, p.TTL, cfg.Clock),
		Normalize: NewNormalizationCache(n.Capacity, n.TTL, cfg.ClassMap, cfg.Clock),
		Element:   NewElementCache(e.Capacity, e.TTL, cfg.Clock),
		Finder:    NewFinderCache(f.Capacity, f.TTL, cfg.Clock),
	}
}

// ParseAndNormalize parses s through the parse cache and normalizes the
// result for tk through the normalization cache.
func (c *Caches) ParseAndNormalize(s string, tk core.Toolkit) (locator.NormalizedLocator, error) {
	loc, err := c.Parse.Parse(s)
	if err != nil {
		return locator.NormalizedLocator{}, err
	}
	return c.Normalize.Normalize(loc, tk), nil
}

// Fork returns a handle that shares c's parse and normalization layers but
// owns new element and finder layers sized by cfg. Lookups against
// different component trees must not share those two layers.
func (c *Caches) Fork(cfg Config) *Caches {
	e := cfg.Element.orDefault(DefaultElementCapacity, DefaultElementTTL)
	f := cfg.Finder.orDefault(DefaultFinderCapacity, DefaultFinderTTL)
	return &Caches{
		Parse:     c.Parse,
		Normalize: c.Normalize,
		Element:   NewElementCache(e.Capacity, e.TTL, cfg.Clock),
		Finder:    NewFinderCache(f.Capacity, f.TTL, cfg.Clock),
	}
}

// Snapshot is the statistics of every layer at one point in time.
type Snapshot struct {
	Parse       Stats                  `json:"parse" yaml:"parse"`
	Normalize   Stats                  `json:"normalize" yaml:"normalize"`
	ByToolkit   map[core.Toolkit]Stats `json:"normalizeByToolkit" yaml:"normalizeByToolkit"`
	Element     Stats                  `json:"element" yaml:"element"`
	Finder      Stats                  `json:"finder" yaml:"finder"`
	CollectedAt time.Time              `json:"collectedAt" yaml:"collectedAt"`
}

// Snapshot collects the statistics of every layer.
func (c *Caches) Snapshot() Snapshot {
	s := Snapshot{
		Parse:       c.Parse.Stats(),
		Normalize:   c.Normalize.Stats(),
		ByToolkit:   make(map[core.Toolkit]Stats, len(core.Toolkits)),
		Element:     c.Element.Stats(),
		Finder:      c.Finder.Stats(),
		CollectedAt: time.Now(),
	}
	for _, tk := range core.Toolkits {
		s.ByToolkit[tk] = c.Normalize.StatsFor(tk)
	}
	return s
}

// Clear empties every layer. Counters are kept.
func (c *Caches) Clear() {
	c.Parse.Clear()
	c.Normalize.Clear()
	c.Element.Clear()
	c.Finder.Clear()
}

// ResetStats zeroes the counters of every layer.
func (c *Caches) ResetStats() {
	c.Parse.ResetStats()
	c.Normalize.ResetStats()
	c.Element.ResetStats()
	c.Finder.ResetStats()
}

var (
	defaultOnce   sync.Once
	defaultCaches *Caches
)

// Default returns the process-wide Caches, built with DefaultConfig on first
// use and never torn down.
func Default() *Caches {
	defaultOnce.Do(func() {
		defaultCaches = New(DefaultConfig())
	})
	return defaultCaches
}

// Parse parses s through the default parse cache.
func Parse(s string) (locator.Locator, error) {
	return Default().Parse.Parse(s)
}

// ParseAndNormalize parses and normalizes s through the default caches.
func ParseAndNormalize(s string, tk core.Toolkit) (locator.NormalizedLocator, error) {
	return Default().ParseAndNormalize(s, tk)
}
