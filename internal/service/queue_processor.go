package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/questforge/embeddings/internal/models"
	"github.com/questforge/embeddings/internal/observability"
)

const (
	defaultBatchSize    = 10
	defaultClaimTimeout = 10 * time.Minute
	// statusWriteTimeout bounds MarkCompleted / MarkFailed, which run even after the
	// caller's context is cancelled so claimed rows do not stay in processing.
	statusWriteTimeout = 10 * time.Second
	// maxContentBatches caps ProcessContent: a content item never has more chunks than this
	// many batches can hold in practice.
	maxContentBatches = 100
)

const emptyContentMessage = "empty content"

// QueueStore is the record store surface used by the queue processor.
type QueueStore interface {
	ClaimPending(ctx context.Context, limit int, claimTimeout time.Duration) ([]models.EmbeddingRecord, error)
	ClaimPendingForContent(ctx context.Context, key models.ContentKey, limit int) ([]models.EmbeddingRecord, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, embedding []float32) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}

// ProcessorConfig tunes batch size, fan-out and provider rate.
type ProcessorConfig struct {
	BatchSize     int
	MaxConcurrent int
	// RateLimit is provider calls per second across all workers. Zero disables limiting.
	RateLimit    float64
	ClaimTimeout time.Duration
}

// ItemResult is the outcome of one claimed record.
type ItemResult struct {
	ID          uuid.UUID              `json:"id"`
	ContentType models.ContentType     `json:"contentType"`
	ContentID   string                 `json:"contentId"`
	ChunkIndex  int                    `json:"chunkIndex"`
	Status      models.EmbeddingStatus `json:"status"`
	Error       string                 `json:"error,omitempty"`
}

// ProcessResult summarizes one or more processed batches.
// Empty is true only when nothing was claimed, so callers can tell an idle queue
// from a batch whose items all failed.
type ProcessResult struct {
	Processed int          `json:"processed"`
	Successes int          `json:"successes"`
	Failures  int          `json:"failures"`
	Empty     bool         `json:"empty"`
	Items     []ItemResult `json:"items,omitempty"`
}

// Response converts the result into the HTTP response shape.
func (r ProcessResult) Response() models.ProcessResponse {
	return models.NewProcessResponse(r.Processed, r.Successes, r.Failures, r.Empty)
}

func (r *ProcessResult) merge(other ProcessResult) {
	r.Processed += other.Processed
	r.Successes += other.Successes
	r.Failures += other.Failures
	r.Items = append(r.Items, other.Items...)
	r.Empty = r.Processed == 0
}

// QueueProcessor claims pending records in batches and turns them into embeddings.
type QueueProcessor struct {
	store   QueueStore
	client  EmbeddingClient
	limiter *rate.Limiter
	cfg     ProcessorConfig
	metrics observability.EmbeddingMetrics
	logger  *slog.Logger
}

// NewQueueProcessor creates a processor. metrics may be nil when metrics are disabled.
func NewQueueProcessor(
	store QueueStore, client EmbeddingClient, cfg ProcessorConfig, metrics observability.EmbeddingMetrics,
) *QueueProcessor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = cfg.BatchSize
	}

	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = defaultClaimTimeout
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.MaxConcurrent)
	}

	return &QueueProcessor{
		store:   store,
		client:  client,
		limiter: limiter,
		cfg:     cfg,
		metrics: metrics,
		logger:  slog.Default(),
	}
}

// ProcessQueue claims one batch of pending records and processes it.
// Per-item failures are recorded on the rows and counted; only a failed claim is returned as an error.
func (p *QueueProcessor) ProcessQueue(ctx context.Context) (ProcessResult, error) {
	records, err := p.store.ClaimPending(ctx, p.cfg.BatchSize, p.cfg.ClaimTimeout)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordWorkerError(ctx, "claim_failed")
		}

		return ProcessResult{}, fmt.Errorf("claim pending: %w", err)
	}

	if len(records) == 0 {
		return ProcessResult{Empty: true}, nil
	}

	result := p.processBatch(ctx, records)

	p.logger.InfoContext(ctx, "embedding: batch processed",
		"processed", result.Processed,
		"successes", result.Successes,
		"failures", result.Failures,
	)

	return result, nil
}

// DrainQueue runs ProcessQueue until the queue is empty or maxBatches batches ran
// (maxBatches <= 0 means no cap). Partial results are returned with a claim error.
func (p *QueueProcessor) DrainQueue(ctx context.Context, maxBatches int) (ProcessResult, error) {
	total := ProcessResult{Empty: true}

	for batch := 0; maxBatches <= 0 || batch < maxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("drain queue: %w", err)
		}

		res, err := p.ProcessQueue(ctx)
		if err != nil {
			return total, err
		}

		if res.Empty {
			break
		}

		total.merge(res)
	}

	return total, nil
}

// ProcessContent processes the pending chunks of one content item inline, ignoring the
// rest of the queue. Used by retry so the caller sees the item's fresh status.
func (p *QueueProcessor) ProcessContent(ctx context.Context, key models.ContentKey) (ProcessResult, error) {
	total := ProcessResult{Empty: true}

	for range maxContentBatches {
		records, err := p.store.ClaimPendingForContent(ctx, key, p.cfg.BatchSize)
		if err != nil {
			if p.metrics != nil {
				p.metrics.RecordWorkerError(ctx, "claim_failed")
			}

			return total, fmt.Errorf("claim pending for %s: %w", key, err)
		}

		if len(records) == 0 {
			break
		}

		total.merge(p.processBatch(ctx, records))
	}

	return total, nil
}

func (p *QueueProcessor) processBatch(ctx context.Context, records []models.EmbeddingRecord) ProcessResult {
	if p.metrics != nil {
		p.metrics.RecordItemsClaimed(ctx, int64(len(records)))
	}

	items := make([]ItemResult, len(records))

	// Plain Group: one failing item must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(p.cfg.MaxConcurrent)

	for i := range records {
		g.Go(func() error {
			items[i] = p.processRecord(ctx, records[i])

			return nil
		})
	}

	_ = g.Wait()

	result := ProcessResult{Processed: len(items), Items: items}

	for _, item := range items {
		if item.Status == models.StatusCompleted {
			result.Successes++
		} else {
			result.Failures++
		}
	}

	return result
}

func (p *QueueProcessor) processRecord(ctx context.Context, rec models.EmbeddingRecord) (res ItemResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "embedding: panic while processing record", "id", rec.ID, "panic", r)
			res = p.fail(ctx, rec, fmt.Sprintf("panic: %v", r), "panic")
		}

		p.recordOutcome(ctx, res.Status, time.Since(start))
	}()

	if strings.TrimSpace(rec.ContentText) == "" {
		return p.fail(ctx, rec, emptyContentMessage, "empty_content")
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return p.fail(ctx, rec, fmt.Sprintf("rate limit wait: %v", err), "rate_limit_wait")
		}
	}

	vec, err := p.client.CreateEmbedding(ctx, rec.ContentText)
	if err != nil {
		return p.fail(ctx, rec, err.Error(), "provider_failed")
	}

	writeCtx, cancel := statusWriteContext(ctx)
	defer cancel()

	err = p.store.MarkCompleted(writeCtx, rec.ID, vec)
	switch {
	case errors.Is(err, ErrRecordNotClaimed):
		return p.notClaimed(ctx, rec)
	case err != nil:
		return p.fail(ctx, rec, fmt.Sprintf("store embedding: %v", err), "mark_failed")
	}

	return ItemResult{
		ID:          rec.ID,
		ContentType: rec.ContentType,
		ContentID:   rec.ContentID,
		ChunkIndex:  rec.ChunkIndex,
		Status:      models.StatusCompleted,
	}
}

// fail marks rec failed with message. A failing MarkFailed is logged; the item still counts as failed.
func (p *QueueProcessor) fail(ctx context.Context, rec models.EmbeddingRecord, message, reason string) ItemResult {
	if p.metrics != nil {
		p.metrics.RecordWorkerError(ctx, reason)
	}

	p.logger.WarnContext(ctx, "embedding: record failed",
		"id", rec.ID,
		"content", rec.Key().String(),
		"chunk_index", rec.ChunkIndex,
		"reason", reason,
		"error", message,
	)

	writeCtx, cancel := statusWriteContext(ctx)
	defer cancel()

	if err := p.store.MarkFailed(writeCtx, rec.ID, message); err != nil {
		if errors.Is(err, ErrRecordNotClaimed) {
			return p.notClaimed(ctx, rec)
		}

		if p.metrics != nil {
			p.metrics.RecordWorkerError(ctx, "mark_failed")
		}

		p.logger.ErrorContext(ctx, "embedding: mark failed", "id", rec.ID, "error", err)
	}

	return ItemResult{
		ID:          rec.ID,
		ContentType: rec.ContentType,
		ContentID:   rec.ContentID,
		ChunkIndex:  rec.ChunkIndex,
		Status:      models.StatusFailed,
		Error:       message,
	}
}

// notClaimed handles a row that was deleted or re-queued while we held it. Nothing is
// written; the newer state wins.
func (p *QueueProcessor) notClaimed(ctx context.Context, rec models.EmbeddingRecord) ItemResult {
	if p.metrics != nil {
		p.metrics.RecordWorkerError(ctx, "not_claimed")
	}

	p.logger.InfoContext(ctx, "embedding: record changed while processing, result dropped", "id", rec.ID)

	return ItemResult{
		ID:          rec.ID,
		ContentType: rec.ContentType,
		ContentID:   rec.ContentID,
		ChunkIndex:  rec.ChunkIndex,
		Status:      models.StatusFailed,
		Error:       ErrRecordNotClaimed.Error(),
	}
}

func (p *QueueProcessor) recordOutcome(ctx context.Context, status models.EmbeddingStatus, d time.Duration) {
	if p.metrics == nil {
		return
	}

	p.metrics.RecordEmbeddingOutcome(ctx, string(status))
	p.metrics.RecordEmbeddingDuration(ctx, d, string(status))
}

func statusWriteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
}
