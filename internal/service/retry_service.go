package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/questforge/embeddings/internal/content"
	"github.com/questforge/embeddings/internal/huberrors"
	"github.com/questforge/embeddings/internal/models"
	"github.com/questforge/embeddings/internal/observability"
)

// RetryStore is the record store surface used by retry.
type RetryStore interface {
	ReplaceContentChunks(
		ctx context.Context, key models.ContentKey, campaignID string, chunks []models.ChunkInput,
	) (int, error)
}

// ContentProcessor processes the pending chunks of one content item inline.
type ContentProcessor interface {
	ProcessContent(ctx context.Context, key models.ContentKey) (ProcessResult, error)
}

// RetryResult reports a retry. Success means the item was re-chunked and re-queued; the
// embedding outcome of the inline pass is in Process, which is nil when processing could not run.
type RetryResult struct {
	Success bool
	Message string
	Chunks  int
	Process *ProcessResult
}

// Response converts the result into the HTTP response shape.
func (r RetryResult) Response() models.RetryResponse {
	resp := models.RetryResponse{
		Success: r.Success,
		Message: r.Message,
		Chunks:  r.Chunks,
	}

	if r.Process != nil {
		p := r.Process.Response()
		resp.Process = &p
	}

	return resp
}

// RetryService re-chunks one content item from its current text and processes it.
type RetryService struct {
	store     RetryStore
	sources   ContentSources
	processor ContentProcessor
	chunks    ChunkOptions
	metrics   observability.EmbeddingMetrics
}

// NewRetryService creates a retry service. metrics may be nil.
func NewRetryService(
	store RetryStore, sources ContentSources, processor ContentProcessor, chunks ChunkOptions,
	metrics observability.EmbeddingMetrics,
) *RetryService {
	return &RetryService{
		store:     store,
		sources:   sources,
		processor: processor,
		chunks:    chunks,
		metrics:   metrics,
	}
}

// Retry replaces every record of the item with fresh pending chunks, then processes them
// synchronously. A processing error is logged and reported in Message, not returned, and
// leaves Success set: the rows stay pending or failed for the next pass.
func (s *RetryService) Retry(ctx context.Context, key models.ContentKey) (RetryResult, error) {
	src, err := s.sources.Source(key.Type)
	if err != nil {
		return RetryResult{}, fmt.Errorf("retry: %w", err)
	}

	item, err := src.Get(ctx, key.ID)
	if err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			return RetryResult{}, huberrors.NewNotFoundError(key.Type.Collection(), "content not found")
		}

		return RetryResult{}, fmt.Errorf("retry: get %s: %w", key, err)
	}

	chunks := chunkInputs(item.Text, s.chunks)

	n, err := s.store.ReplaceContentChunks(ctx, key, item.CampaignID, chunks)
	if err != nil {
		return RetryResult{}, fmt.Errorf("retry: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordChunksQueued(ctx, "retry", int64(n))
	}

	result := RetryResult{Success: true, Chunks: n}

	processed, err := s.processor.ProcessContent(ctx, key)
	if err != nil {
		slog.ErrorContext(ctx, "retry: processing failed", "content", key.String(), "error", err)

		result.Message = fmt.Sprintf("Re-queued %d chunks; processing failed: %v", n, err)

		return result, nil
	}

	result.Process = &processed
	result.Message = fmt.Sprintf("Re-queued %d chunks; %d embedded, %d failed",
		n, processed.Successes, processed.Failures)

	slog.InfoContext(ctx, "retry: content reprocessed",
		"content", key.String(),
		"chunks", n,
		"successes", processed.Successes,
		"failures", processed.Failures,
	)

	return result, nil
}
