// Package metrics exports cache statistics and find timings through
// OpenTelemetry.
package metrics

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/devicelab-dev/guilocator/pkg/cache"
	"github.com/devicelab-dev/guilocator/pkg/core"
)

// Layer attribute values.
const (
	LayerParse     = "parse"
	LayerNormalize = "normalize"
	LayerElement   = "element"
	LayerFinder    = "finder"
)

// CacheObserver reports the counters of a Caches handle on every collection.
type CacheObserver struct {
	reg metric.Registration
}

// ObserveCaches registers observable instruments for every layer of c.
// Normalization stores are reported per toolkit.
func ObserveCaches(meter metric.Meter, c *cache.Caches) (*CacheObserver, error) {
	hits, err := meter.Int64ObservableCounter(
		"locator.cache.hits",
		metric.WithDescription("Cache lookups that found a fresh entry"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}
	misses, err := meter.Int64ObservableCounter(
		"locator.cache.misses",
		metric.WithDescription("Cache lookups that found no fresh entry"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}
	evictions, err := meter.Int64ObservableCounter(
		"locator.cache.evictions",
		metric.WithDescription("Entries dropped to stay within capacity"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}
	invalidations, err := meter.Int64ObservableCounter(
		"locator.cache.invalidations",
		metric.WithDescription("Entries dropped by explicit invalidation"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}
	size, err := meter.Int64ObservableGauge(
		"locator.cache.size",
		metric.WithDescription("Entries currently held, expired ones included"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		snap := c.Snapshot()
		observe := func(s cache.Stats, attrs ...attribute.KeyValue) {
			opt := metric.WithAttributes(attrs...)
			o.ObserveInt64(hits, int64(s.Hits), opt)
			o.ObserveInt64(misses, int64(s.Misses), opt)
			o.ObserveInt64(evictions, int64(s.Evictions), opt)
			o.ObserveInt64(invalidations, int64(s.Invalidations), opt)
			o.ObserveInt64(size, int64(s.Size), opt)
		}

		observe(snap.Parse, attribute.String("cache.layer", LayerParse))
		for _, tk := range core.Toolkits {
			observe(snap.ByToolkit[tk],
				attribute.String("cache.layer", LayerNormalize),
				attribute.String("toolkit", tk.String()),
			)
		}
		observe(snap.Element, attribute.String("cache.layer", LayerElement))
		observe(snap.Finder, attribute.String("cache.layer", LayerFinder))
		return nil
	}, hits, misses, evictions, invalidations, size)
	if err != nil {
		return nil, err
	}

	return &CacheObserver{reg: reg}, nil
}

// Close stops reporting.
func (o *CacheObserver) Close() error {
	if o == nil || o.reg == nil {
		return errors.New("cache observer not registered")
	}
	return o.reg.Unregister()
}

// Recorder records find operations.
//
// Implementations must be safe for concurrent use and must not panic.
type Recorder interface {
	RecordFind(ctx context.Context, tk core.Toolkit, cached bool, matches int, duration time.Duration, err error)
}

// findMetrics is the OpenTelemetry Recorder.
type findMetrics struct {
	total    metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewRecorder creates a Recorder backed by meter.
func NewRecorder(meter metric.Meter) (Recorder, error) {
	total, err := meter.Int64Counter(
		"locator.find.total",
		metric.WithDescription("Total number of find operations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errCount, err := meter.Int64Counter(
		"locator.find.errors",
		metric.WithDescription("Find operations that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"locator.find.duration_ms",
		metric.WithDescription("Find duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &findMetrics{total: total, errors: errCount, duration: duration}, nil
}

// RecordFind records one find operation.
func (m *findMetrics) RecordFind(ctx context.Context, tk core.Toolkit, cached bool, matches int, duration time.Duration, err error) {
	opt := metric.WithAttributes(
		attribute.String("toolkit", tk.String()),
		attribute.Bool("cached", cached),
		attribute.Bool("found", matches > 0),
	)

	m.total.Add(ctx, 1, opt)
	if err != nil {
		m.errors.Add(ctx, 1, opt)
	}
	m.duration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

// Noop returns a Recorder that does nothing.
func Noop() Recorder {
	return noopRecorder{}
}

type noopRecorder struct{}

func (noopRecorder) RecordFind(context.Context, core.Toolkit, bool, int, time.Duration, error) {}
