package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Query cache lookup outcomes.
const (
	QueryCacheHit   = "hit"
	QueryCacheMiss  = "miss"
	QueryCacheError = "error"
)

// CacheMetrics records how search queries obtain their embedding: served from the
// query cache, or embedded by the provider (and how long that call took).
type CacheMetrics interface {
	RecordQueryCacheLookup(ctx context.Context, outcome string)
	RecordQueryEmbeddingDuration(ctx context.Context, d time.Duration)
}

type cacheMetrics struct {
	lookups  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewCacheMetrics creates CacheMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewCacheMetrics(meter metric.Meter) (CacheMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	lookups, err := meter.Int64Counter(
		MetricNameQueryCacheLookups,
		metric.WithDescription("Search query embedding lookups. Label outcome: hit, miss, error. "+
			"Hit ratio = rate(outcome=hit) / rate(all)."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create query cache lookups counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameQueryEmbeddingDuration,
		metric.WithDescription("Provider latency of embedding a search query that missed the cache."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create query embedding duration histogram: %w", err)
	}

	return &cacheMetrics{lookups: lookups, duration: duration}, nil
}

func (c *cacheMetrics) RecordQueryCacheLookup(ctx context.Context, outcome string) {
	c.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrOutcome, NormalizeReason(outcome, AllowedQueryCacheOutcomes)),
	))
}

func (c *cacheMetrics) RecordQueryEmbeddingDuration(ctx context.Context, d time.Duration) {
	c.duration.Record(ctx, d.Seconds())
}
