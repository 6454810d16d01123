package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// APIMetrics records API-level metrics (body limit and rate limit rejections).
type APIMetrics interface {
	RecordRequestBodyTooLarge(ctx context.Context)
	RecordRateLimited(ctx context.Context, route string)
}

// apiMetrics implements APIMetrics.
type apiMetrics struct {
	requestBodyTooLarge metric.Int64Counter
	rateLimited         metric.Int64Counter
}

// NewAPIMetrics creates APIMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewAPIMetrics(meter metric.Meter) (APIMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	desc := "Total number of requests rejected because the request body exceeded the configured limit (413)."

	counter, err := meter.Int64Counter(
		MetricNameRequestBodyTooLarge,
		metric.WithDescription(desc),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create request body too large counter: %w", err)
	}

	rateLimited, err := meter.Int64Counter(
		MetricNameRateLimited,
		metric.WithDescription("Requests rejected with 429 by the per-client rate limiter."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rate limited counter: %w", err)
	}

	return &apiMetrics{requestBodyTooLarge: counter, rateLimited: rateLimited}, nil
}

func (a *apiMetrics) RecordRequestBodyTooLarge(ctx context.Context) {
	a.requestBodyTooLarge.Add(ctx, 1)
}

func (a *apiMetrics) RecordRateLimited(ctx context.Context, route string) {
	route = NormalizeReason(route, AllowedRoutes)
	a.rateLimited.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrRoute, route)))
}
