package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/questforge/embeddings/internal/models"
)

// StatusCounter reads per-status record counts.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (models.StatusCounts, error)
}

// QueueDepthRecorder receives queue depth samples (observability.EmbeddingMetrics).
type QueueDepthRecorder interface {
	SetQueueDepth(pending, processing, failed int64)
}

// RunQueueDepthPoller samples the record counts every interval until ctx is done.
func RunQueueDepthPoller(ctx context.Context, counter StatusCounter, recorder QueueDepthRecorder, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	update := func() {
		counts, err := counter.CountByStatus(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.WarnContext(ctx, "embedding: queue depth poll failed", "error", err)
			}

			return
		}

		recorder.SetQueueDepth(counts.Pending, counts.Processing, counts.Failed)
	}

	update()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
