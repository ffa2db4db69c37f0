package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/devicelab-dev/guilocator/pkg/cache"
	"github.com/devicelab-dev/guilocator/pkg/core"
)

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, mp
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func hasAttr(set attribute.Set, key, want string) bool {
	v, ok := set.Value(attribute.Key(key))
	return ok && v.AsString() == want
}

func TestObserveCaches_ReportsPerLayer(t *testing.T) {
	reader, mp := newReader()
	c := cache.New(cache.DefaultConfig())

	_, err := c.ParseAndNormalize("Button", core.ToolkitSWT)
	require.NoError(t, err)
	_, err = c.ParseAndNormalize("Button", core.ToolkitSWT)
	require.NoError(t, err)
	for i := int64(0); i < 3; i++ {
		c.Finder.Put("name:x"+string(rune('a'+i)), []int64{i})
	}
	c.Finder.InvalidateAll()

	obs, err := ObserveCaches(mp.Meter("test"), c)
	require.NoError(t, err)
	defer obs.Close()

	rm := collect(t, reader)

	hits := findMetric(rm, "locator.cache.hits")
	require.NotNil(t, hits)
	sum, ok := hits.Data.(metricdata.Sum[int64])
	require.True(t, ok, "got %T", hits.Data)

	var parseHits, swtHits int64 = -1, -1
	for _, dp := range sum.DataPoints {
		switch {
		case hasAttr(dp.Attributes, "cache.layer", LayerParse):
			parseHits = dp.Value
		case hasAttr(dp.Attributes, "cache.layer", LayerNormalize) && hasAttr(dp.Attributes, "toolkit", "swt"):
			swtHits = dp.Value
		}
	}
	assert.Equal(t, int64(1), parseHits)
	assert.Equal(t, int64(1), swtHits)
	// parse + 3 toolkits + element + finder
	assert.Len(t, sum.DataPoints, 6)

	inv := findMetric(rm, "locator.cache.invalidations")
	require.NotNil(t, inv)
	for _, dp := range inv.Data.(metricdata.Sum[int64]).DataPoints {
		if hasAttr(dp.Attributes, "cache.layer", LayerFinder) {
			assert.Equal(t, int64(3), dp.Value)
		}
	}

	size := findMetric(rm, "locator.cache.size")
	require.NotNil(t, size)
	_, ok = size.Data.(metricdata.Gauge[int64])
	assert.True(t, ok, "size should be a gauge, got %T", size.Data)
}

func TestObserveCaches_CloseStopsReporting(t *testing.T) {
	reader, mp := newReader()
	c := cache.New(cache.DefaultConfig())

	obs, err := ObserveCaches(mp.Meter("test"), c)
	require.NoError(t, err)
	require.NoError(t, obs.Close())

	rm := collect(t, reader)
	if m := findMetric(rm, "locator.cache.hits"); m != nil {
		assert.Empty(t, m.Data.(metricdata.Sum[int64]).DataPoints)
	}

	var nilObs *CacheObserver
	assert.Error(t, nilObs.Close())
}

func TestRecorder_RecordFind(t *testing.T) {
	reader, mp := newReader()
	rec, err := NewRecorder(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	rec.RecordFind(ctx, core.ToolkitSwing, false, 2, 3*time.Millisecond, nil)
	rec.RecordFind(ctx, core.ToolkitSwing, false, 0, time.Millisecond, errors.New("agent gone"))

	rm := collect(t, reader)

	total := findMetric(rm, "locator.find.total")
	require.NotNil(t, total)
	var calls int64
	for _, dp := range total.Data.(metricdata.Sum[int64]).DataPoints {
		calls += dp.Value
	}
	assert.Equal(t, int64(2), calls)

	errs := findMetric(rm, "locator.find.errors")
	require.NotNil(t, errs)
	dps := errs.Data.(metricdata.Sum[int64]).DataPoints
	require.Len(t, dps, 1)
	assert.Equal(t, int64(1), dps[0].Value)

	hist := findMetric(rm, "locator.find.duration_ms")
	require.NotNil(t, hist)
	_, ok := hist.Data.(metricdata.Histogram[float64])
	assert.True(t, ok)
}

func TestNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		Noop().RecordFind(context.Background(), core.ToolkitSWT, true, 1, time.Second, nil)
	})
}
