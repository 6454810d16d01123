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

const (
	defaultRecentLimit = 5
	maxRecentLimit     = 100
)

// StatusStore is the record store surface used by status reporting.
type StatusStore interface {
	CountByStatus(ctx context.Context) (models.StatusCounts, error)
	ListRecentByStatus(ctx context.Context, status models.EmbeddingStatus, limit int) ([]models.EmbeddingRecord, error)
	ListByContent(ctx context.Context, key models.ContentKey) ([]models.EmbeddingRecord, error)
	UpsertContentChunks(
		ctx context.Context, key models.ContentKey, campaignID string, chunks []models.ChunkInput, force bool,
	) (int, error)
}

// EnsureResult tells whether EnsureQueued had to create records.
type EnsureResult struct {
	Created bool
	Chunks  int
}

// StatusService reports queue and per-item embedding state.
type StatusService struct {
	store   StatusStore
	sources ContentSources
	trigger ProcessTrigger
	chunks  ChunkOptions
	metrics observability.EmbeddingMetrics
}

// NewStatusService creates a status service. trigger and metrics may be nil.
func NewStatusService(
	store StatusStore, sources ContentSources, trigger ProcessTrigger, chunks ChunkOptions,
	metrics observability.EmbeddingMetrics,
) *StatusService {
	return &StatusService{
		store:   store,
		sources: sources,
		trigger: trigger,
		chunks:  chunks,
		metrics: metrics,
	}
}

// Status returns the per-status counts and the most recent pending and failed rows.
// recent <= 0 uses 5.
func (s *StatusService) Status(ctx context.Context, recent int) (models.QueueStatusResponse, error) {
	if recent <= 0 {
		recent = defaultRecentLimit
	}

	recent = min(recent, maxRecentLimit)

	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return models.QueueStatusResponse{}, fmt.Errorf("status: %w", err)
	}

	pending, err := s.store.ListRecentByStatus(ctx, models.StatusPending, recent)
	if err != nil {
		return models.QueueStatusResponse{}, fmt.Errorf("status: %w", err)
	}

	failed, err := s.store.ListRecentByStatus(ctx, models.StatusFailed, recent)
	if err != nil {
		return models.QueueStatusResponse{}, fmt.Errorf("status: %w", err)
	}

	return models.QueueStatusResponse{
		StatusCounts:  counts,
		Total:         counts.Total(),
		RecentPending: nonNil(pending),
		RecentFailed:  nonNil(failed),
	}, nil
}

// ContentStatus returns the chunk rows and aggregate status of one content item.
// It never creates records; an item without rows is a NotFoundError.
func (s *StatusService) ContentStatus(ctx context.Context, key models.ContentKey) (models.ContentStatusResponse, error) {
	records, err := s.store.ListByContent(ctx, key)
	if err != nil {
		return models.ContentStatusResponse{}, fmt.Errorf("content status: %w", err)
	}

	if len(records) == 0 {
		return models.ContentStatusResponse{}, huberrors.NewNotFoundError("embedding", "no embedding records for content")
	}

	return models.ContentStatusResponse{
		ContentType: key.Type,
		ContentID:   key.ID,
		Status:      models.AggregateStatus(records),
		TotalChunks: records[0].TotalChunks,
		Chunks:      records,
	}, nil
}

// EnsureQueued creates pending records for an item that has none and triggers processing.
// Items that already have records are left untouched.
func (s *StatusService) EnsureQueued(ctx context.Context, key models.ContentKey) (EnsureResult, error) {
	existing, err := s.store.ListByContent(ctx, key)
	if err != nil {
		return EnsureResult{}, fmt.Errorf("ensure queued: %w", err)
	}

	if len(existing) > 0 {
		return EnsureResult{Chunks: existing[0].TotalChunks}, nil
	}

	src, err := s.sources.Source(key.Type)
	if err != nil {
		return EnsureResult{}, fmt.Errorf("ensure queued: %w", err)
	}

	item, err := src.Get(ctx, key.ID)
	if err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			return EnsureResult{}, huberrors.NewNotFoundError(key.Type.Collection(), "content not found")
		}

		return EnsureResult{}, fmt.Errorf("ensure queued: get %s: %w", key, err)
	}

	chunks := chunkInputs(item.Text, s.chunks)

	n, err := s.store.UpsertContentChunks(ctx, key, item.CampaignID, chunks, false)
	if err != nil {
		return EnsureResult{}, fmt.Errorf("ensure queued: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordChunksQueued(ctx, "ensure", int64(n))
	}

	slog.InfoContext(ctx, "embedding: content queued on demand", "content", key.String(), "chunks", n)

	triggerProcessing(ctx, s.trigger, s.metrics, "ensure")

	return EnsureResult{Created: n > 0, Chunks: len(chunks)}, nil
}

func nonNil(records []models.EmbeddingRecord) []models.EmbeddingRecord {
	if records == nil {
		return []models.EmbeddingRecord{}
	}

	return records
}
