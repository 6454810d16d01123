package observability

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EmbeddingMetrics records embedding pipeline metrics (sync, processor, trigger).
// Methods accept ctx for future exemplar support.
type EmbeddingMetrics interface {
	RecordChunksQueued(ctx context.Context, source string, count int64)
	RecordItemsClaimed(ctx context.Context, count int64)
	RecordEmbeddingOutcome(ctx context.Context, status string)
	RecordEmbeddingDuration(ctx context.Context, duration time.Duration, status string)
	RecordWorkerError(ctx context.Context, reason string)
	RecordTriggerError(ctx context.Context, reason string)
	SetQueueDepth(pending, processing, failed int64)
}

// embeddingMetrics implements EmbeddingMetrics.
type embeddingMetrics struct {
	chunksQueued  metric.Int64Counter
	itemsClaimed  metric.Int64Counter
	outcomes      metric.Int64Counter
	duration      metric.Float64Histogram
	workerErrors  metric.Int64Counter
	triggerErrors metric.Int64Counter

	pending    atomic.Int64
	processing atomic.Int64
	failed     atomic.Int64
}

// NewEmbeddingMetrics creates EmbeddingMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewEmbeddingMetrics(meter metric.Meter) (EmbeddingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	m := &embeddingMetrics{}

	var err error

	m.chunksQueued, err = meter.Int64Counter(
		MetricNameChunksQueued,
		metric.WithDescription("Chunk records inserted or reset to pending, by source (sync, retry, ensure)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create chunks queued counter: %w", err)
	}

	m.itemsClaimed, err = meter.Int64Counter(
		MetricNameItemsClaimed,
		metric.WithDescription("Chunk records claimed for processing"),
	)
	if err != nil {
		return nil, fmt.Errorf("create items claimed counter: %w", err)
	}

	m.outcomes, err = meter.Int64Counter(
		MetricNameEmbeddingOutcomes,
		metric.WithDescription("Chunk processing outcomes by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding outcomes counter: %w", err)
	}

	m.duration, err = meter.Float64Histogram(
		MetricNameEmbeddingDuration,
		metric.WithDescription("Per-chunk processing duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding duration histogram: %w", err)
	}

	m.workerErrors, err = meter.Int64Counter(
		MetricNameEmbeddingWorkerErrors,
		metric.WithDescription("Processor errors by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding worker errors counter: %w", err)
	}

	m.triggerErrors, err = meter.Int64Counter(
		MetricNameTriggerErrors,
		metric.WithDescription("Failures to enqueue a background processing job"),
	)
	if err != nil {
		return nil, fmt.Errorf("create trigger errors counter: %w", err)
	}

	_, err = meter.Int64ObservableGauge(
		MetricNameQueueDepth,
		metric.WithDescription("Chunk records per non-completed status, sampled periodically"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.pending.Load(), metric.WithAttributes(attribute.String(AttrStatus, "pending")))
			o.Observe(m.processing.Load(), metric.WithAttributes(attribute.String(AttrStatus, "processing")))
			o.Observe(m.failed.Load(), metric.WithAttributes(attribute.String(AttrStatus, "failed")))

			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create queue depth gauge: %w", err)
	}

	return m, nil
}

func (e *embeddingMetrics) RecordChunksQueued(ctx context.Context, source string, count int64) {
	source = NormalizeReason(source, AllowedQueueSources)
	e.chunksQueued.Add(ctx, count, metric.WithAttributes(attribute.String(AttrSource, source)))
}

func (e *embeddingMetrics) RecordItemsClaimed(ctx context.Context, count int64) {
	e.itemsClaimed.Add(ctx, count)
}

func (e *embeddingMetrics) RecordEmbeddingOutcome(ctx context.Context, status string) {
	status = NormalizeReason(status, AllowedOutcomeStatuses)
	e.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStatus, status)))
}

func (e *embeddingMetrics) RecordEmbeddingDuration(ctx context.Context, duration time.Duration, status string) {
	status = NormalizeReason(status, AllowedOutcomeStatuses)
	e.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrStatus, status)))
}

func (e *embeddingMetrics) RecordWorkerError(ctx context.Context, reason string) {
	reason = NormalizeReason(reason, AllowedWorkerReasons)
	e.workerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}

func (e *embeddingMetrics) RecordTriggerError(ctx context.Context, reason string) {
	reason = NormalizeReason(reason, AllowedTriggerReasons)
	e.triggerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}

func (e *embeddingMetrics) SetQueueDepth(pending, processing, failed int64) {
	e.pending.Store(pending)
	e.processing.Store(processing)
	e.failed.Store(failed)
}
