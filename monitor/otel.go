package monitor

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument registers observable OpenTelemetry instruments reading the
// cache's statistics at every collection. Unregister the returned
// registration before closing the cache.
func (m *Monitor) Instrument(meter metric.Meter) (metric.Registration, error) {
	var (
		hits        metric.Int64ObservableCounter
		misses      metric.Int64ObservableCounter
		sets        metric.Int64ObservableCounter
		evictions   metric.Int64ObservableCounter
		expirations metric.Int64ObservableCounter
		entries     metric.Int64ObservableGauge
		bytes       metric.Int64ObservableGauge
		hitRate     metric.Float64ObservableGauge
		err         error
	)
	counter := func(name, desc string) metric.Int64ObservableCounter {
		if err != nil {
			return nil
		}
		var c metric.Int64ObservableCounter
		c, err = meter.Int64ObservableCounter(name, metric.WithDescription(desc))
		return c
	}
	hits = counter("cache.hits", "Lookups that found a live entry")
	misses = counter("cache.misses", "Lookups that found no live entry")
	sets = counter("cache.sets", "Accepted writes")
	evictions = counter("cache.evictions", "Entries removed to stay within the budgets")
	expirations = counter("cache.expirations", "Entries removed after their TTL elapsed")
	if err != nil {
		return nil, errors.Wrap(err, "create counter")
	}
	if entries, err = meter.Int64ObservableGauge("cache.entries", metric.WithDescription("Live entries")); err != nil {
		return nil, errors.Wrap(err, "create gauge")
	}
	if bytes, err = meter.Int64ObservableGauge("cache.size", metric.WithDescription("Estimated size of live values"), metric.WithUnit("By")); err != nil {
		return nil, errors.Wrap(err, "create gauge")
	}
	if hitRate, err = meter.Float64ObservableGauge("cache.hit_rate", metric.WithDescription("Hit rate"), metric.WithUnit("%")); err != nil {
		return nil, errors.Wrap(err, "create gauge")
	}

	attrs := metric.WithAttributes(attribute.String("cache.id", m.cache.ID()))
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := m.cache.Stats()
		o.ObserveInt64(hits, s.Hits, attrs)
		o.ObserveInt64(misses, s.Misses, attrs)
		o.ObserveInt64(sets, s.Sets, attrs)
		o.ObserveInt64(evictions, s.Evictions, attrs)
		o.ObserveInt64(expirations, s.Expirations, attrs)
		o.ObserveInt64(entries, int64(s.CacheSize), attrs)
		o.ObserveInt64(bytes, s.TotalSizeBytes, attrs)
		o.ObserveFloat64(hitRate, s.HitRate, attrs)
		return nil
	}, hits, misses, sets, evictions, expirations, entries, bytes, hitRate)
}
