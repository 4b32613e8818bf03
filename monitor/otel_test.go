package monitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]any {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	values := make(map[string]any)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					values[m.Name] = data.DataPoints[0].Value
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					values[m.Name] = data.DataPoints[0].Value
				}
			case metricdata.Gauge[float64]:
				if len(data.DataPoints) > 0 {
					values[m.Name] = data.DataPoints[0].Value
				}
			}
		}
	}
	return values
}

func TestInstrument(t *testing.T) {
	c := newCache(t)
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	reg, err := newMonitor(c).Instrument(provider.Meter("test"))
	require.NoError(t, err)

	c.Set("a", "value")
	c.Get("a")
	c.Get("missing")

	values := collect(t, reader)
	assert.Equal(t, int64(1), values["cache.hits"])
	assert.Equal(t, int64(1), values["cache.misses"])
	assert.Equal(t, int64(1), values["cache.sets"])
	assert.Equal(t, int64(1), values["cache.entries"])
	assert.Equal(t, 50.0, values["cache.hit_rate"])
	assert.Greater(t, values["cache.size"], int64(0))

	require.NoError(t, reg.Unregister())
	c.Set("b", "value")
	assert.NotEqual(t, int64(2), collect(t, reader)["cache.sets"])
}
