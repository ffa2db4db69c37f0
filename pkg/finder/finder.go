// Package finder resolves locator strings to elements through a Transport,
// keeping results in the finder and element caches.
package finder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/guilocator/pkg/cache"
	"github.com/devicelab-dev/guilocator/pkg/core"
	"github.com/devicelab-dev/guilocator/pkg/locator"
	"github.com/devicelab-dev/guilocator/pkg/logger"
	"github.com/devicelab-dev/guilocator/pkg/metrics"
)

// ErrNotFound is returned by First when nothing matches.
var ErrNotFound = errors.New("no element matches locator")

// DefaultFetchLimit bounds concurrent element fetches in FindElements.
const DefaultFetchLimit = 8

// Transport talks to the agent inside the application under test.
type Transport interface {
	// FindElements returns the ids of all components matching loc, in the
	// agent's traversal order.
	FindElements(ctx context.Context, loc locator.NormalizedLocator) ([]int64, error)
	// Element returns the current properties of one component.
	Element(ctx context.Context, tk core.Toolkit, id int64) (core.ElementProperties, error)
}

// Finder evaluates locators for one toolkit.
type Finder struct {
	transport  Transport
	toolkit    core.Toolkit
	caches     *cache.Caches
	recorder   metrics.Recorder
	fetchLimit int
}

// Option configures a Finder.
type Option func(*Finder)

// WithCaches sets the cache handle. The default is cache.Default().
func WithCaches(c *cache.Caches) Option {
	return func(f *Finder) { f.caches = c }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(f *Finder) { f.recorder = r }
}

// WithFetchLimit bounds concurrent element fetches. Values < 1 are ignored.
func WithFetchLimit(n int) Option {
	return func(f *Finder) {
		if n >= 1 {
			f.fetchLimit = n
		}
	}
}

// New creates a Finder.
func New(t Transport, tk core.Toolkit, opts ...Option) *Finder {
	f := &Finder{
		transport:  t,
		toolkit:    tk,
		recorder:   metrics.Noop(),
		fetchLimit: DefaultFetchLimit,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.caches == nil {
		f.caches = cache.Default()
	}
	return f
}

// Toolkit returns the toolkit locators are normalized for.
func (f *Finder) Toolkit() core.Toolkit {
	return f.toolkit
}

// Caches returns the cache handle in use.
func (f *Finder) Caches() *cache.Caches {
	return f.caches
}

// Find returns the ids of the elements matching raw. Cached results are
// returned without contacting the transport.
func (f *Finder) Find(ctx context.Context, raw string) (ids []int64, err error) {
	start := time.Now()
	cached := false
	defer func() {
		f.recorder.RecordFind(ctx, f.toolkit, cached, len(ids), time.Since(start), err)
	}()

	n, err := f.caches.ParseAndNormalize(raw, f.toolkit)
	if err != nil {
		return nil, err
	}

	key := f.key(n)
	if hit, ok := f.caches.Finder.Get(key); ok {
		cached = true
		logger.Debug("find %s: %d cached", key, len(hit))
		return hit, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, err = f.transport.FindElements(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", raw, err)
	}
	f.caches.Finder.Put(key, ids)
	logger.Debug("find %s: %d found", key, len(ids))
	return ids, nil
}

// FindElements returns the properties of every element matching raw, in
// match order. Snapshots are fetched concurrently.
func (f *Finder) FindElements(ctx context.Context, raw string) ([]core.ElementProperties, error) {
	ids, err := f.Find(ctx, raw)
	if err != nil {
		return nil, err
	}

	out := make([]core.ElementProperties, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.fetchLimit)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			el, err := f.Element(gctx, id)
			if err != nil {
				return err
			}
			out[i] = el
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// First returns the first element matching raw, or ErrNotFound.
func (f *Finder) First(ctx context.Context, raw string) (core.ElementProperties, error) {
	ids, err := f.Find(ctx, raw)
	if err != nil {
		return core.ElementProperties{}, err
	}
	if len(ids) == 0 {
		return core.ElementProperties{}, fmt.Errorf("%q: %w", raw, ErrNotFound)
	}
	return f.Element(ctx, ids[0])
}

// Element returns the properties of one element, from the element cache if
// fresh.
func (f *Finder) Element(ctx context.Context, id int64) (core.ElementProperties, error) {
	if el, ok := f.caches.Element.Get(id); ok {
		return el, nil
	}
	if err := ctx.Err(); err != nil {
		return core.ElementProperties{}, err
	}

	el, err := f.transport.Element(ctx, f.toolkit, id)
	if err != nil {
		return core.ElementProperties{}, fmt.Errorf("element %d: %w", id, err)
	}
	f.caches.Element.Put(el)
	return el, nil
}

// AfterAction drops every finder result and the snapshots of the given
// elements. Call it after anything that may change the component tree.
func (f *Finder) AfterAction(ids ...int64) {
	n := f.caches.Finder.InvalidateAll()
	m := f.caches.Element.InvalidateMany(ids...)
	logger.Debug("after action: dropped %d finder entries, %d elements", n, m)
}

// key identifies a finder result. The normalized form is used so that
// equivalent spellings share one entry.
func (f *Finder) key(n locator.NormalizedLocator) string {
	return n.Toolkit.String() + "|" + n.Locator().String()
}
