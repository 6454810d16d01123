package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/questforge/embeddings/internal/content"
	"github.com/questforge/embeddings/internal/models"
	"github.com/questforge/embeddings/internal/observability"
)

// SyncStore is the record store surface used by sync.
type SyncStore interface {
	UpsertContentChunks(
		ctx context.Context, key models.ContentKey, campaignID string, chunks []models.ChunkInput, force bool,
	) (int, error)
	DeleteByContent(ctx context.Context, key models.ContentKey) (int64, error)
}

// ContentSources resolves content types to their adapters (content.Registry).
type ContentSources interface {
	Source(t models.ContentType) (content.Source, error)
	Types() []models.ContentType
}

// SyncResult reports one enqueue run.
// TotalQueued counts chunk rows inserted or reset to pending; Skipped counts unchanged chunks
// left as they were; FailedItems counts items whose upsert failed.
type SyncResult struct {
	TotalQueued int
	PerType     map[models.ContentType]int
	Skipped     int
	FailedItems int
}

// Response converts the result into the HTTP response shape.
func (r SyncResult) Response() models.SyncResponse {
	perType := make(map[string]int, len(r.PerType))
	for t, n := range r.PerType {
		perType[t.Collection()] = n
	}

	return models.SyncResponse{
		Success: true,
		Message: fmt.Sprintf("Queued %d chunks for embedding", r.TotalQueued),
		Total:   r.TotalQueued,
		PerType: perType,
		Skipped: r.Skipped,
	}
}

// SyncService enqueues campaign content for embedding.
type SyncService struct {
	store   SyncStore
	sources ContentSources
	trigger ProcessTrigger
	chunks  ChunkOptions
	metrics observability.EmbeddingMetrics
}

// NewSyncService creates a sync service. trigger and metrics may be nil.
func NewSyncService(
	store SyncStore, sources ContentSources, trigger ProcessTrigger, chunks ChunkOptions,
	metrics observability.EmbeddingMetrics,
) *SyncService {
	return &SyncService{
		store:   store,
		sources: sources,
		trigger: trigger,
		chunks:  chunks,
		metrics: metrics,
	}
}

// EnqueueContent chunks every item of types in campaignID and upserts pending records.
// Empty types means every registered type. Unchanged chunks stay as they are unless force is set.
// Per-item and per-type failures are logged and excluded from the counts; only an unknown
// content type is returned as an error.
func (s *SyncService) EnqueueContent(
	ctx context.Context, campaignID string, types []models.ContentType, force bool,
) (SyncResult, error) {
	if campaignID == "" {
		return SyncResult{}, ErrMissingCampaignID
	}

	if len(types) == 0 {
		types = s.sources.Types()
	}

	sources := make([]content.Source, 0, len(types))

	for _, t := range types {
		src, err := s.sources.Source(t)
		if err != nil {
			return SyncResult{}, fmt.Errorf("sync: %w", err)
		}

		sources = append(sources, src)
	}

	result := SyncResult{PerType: make(map[models.ContentType]int, len(sources))}

	for _, src := range sources {
		queued, skipped, failed := s.enqueueType(ctx, campaignID, src, force)
		result.PerType[src.Type()] = queued
		result.TotalQueued += queued
		result.Skipped += skipped
		result.FailedItems += failed
	}

	if s.metrics != nil {
		s.metrics.RecordChunksQueued(ctx, "sync", int64(result.TotalQueued))
	}

	slog.InfoContext(ctx, "sync: content enqueued",
		"campaign_id", campaignID,
		"queued", result.TotalQueued,
		"skipped", result.Skipped,
		"failed_items", result.FailedItems,
		"force", force,
	)

	if result.TotalQueued > 0 {
		triggerProcessing(ctx, s.trigger, s.metrics, "sync")
	}

	return result, nil
}

func (s *SyncService) enqueueType(
	ctx context.Context, campaignID string, src content.Source, force bool,
) (queued, skipped, failed int) {
	items, err := src.List(ctx, campaignID)
	if err != nil {
		slog.ErrorContext(ctx, "sync: list content failed",
			"campaign_id", campaignID,
			"content_type", src.Type(),
			"error", err,
		)

		return 0, 0, 0
	}

	for _, item := range items {
		chunks := chunkInputs(item.Text, s.chunks)

		n, err := s.store.UpsertContentChunks(ctx, item.Key(), item.CampaignID, chunks, force)
		if err != nil {
			slog.ErrorContext(ctx, "sync: upsert content failed",
				"content", item.Key().String(),
				"error", err,
			)

			failed++

			continue
		}

		queued += n
		skipped += len(chunks) - n
	}

	return queued, skipped, failed
}

// RemoveContent deletes every record of one content item, e.g. after the item was deleted.
func (s *SyncService) RemoveContent(ctx context.Context, key models.ContentKey) (int64, error) {
	n, err := s.store.DeleteByContent(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("remove content %s: %w", key, err)
	}

	slog.InfoContext(ctx, "sync: content removed", "content", key.String(), "deleted", n)

	return n, nil
}
