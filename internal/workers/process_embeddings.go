// Package workers provides River job workers.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/questforge/embeddings/internal/service"
)

const (
	defaultProcessTimeout = 10 * time.Minute
	defaultMaxBatches     = 100
)

// QueueDrainer processes pending records until the queue is empty or maxBatches ran.
type QueueDrainer interface {
	DrainQueue(ctx context.Context, maxBatches int) (service.ProcessResult, error)
}

// ProcessEmbeddingsWorker drains the embedding queue for each process_embeddings job.
type ProcessEmbeddingsWorker struct {
	river.WorkerDefaults[service.ProcessEmbeddingsArgs]

	drainer    QueueDrainer
	maxBatches int
	timeout    time.Duration
}

// NewProcessEmbeddingsWorker creates the worker. maxBatches <= 0 uses 100; timeout <= 0 uses 10m.
func NewProcessEmbeddingsWorker(drainer QueueDrainer, maxBatches int, timeout time.Duration) *ProcessEmbeddingsWorker {
	if maxBatches <= 0 {
		maxBatches = defaultMaxBatches
	}

	if timeout <= 0 {
		timeout = defaultProcessTimeout
	}

	return &ProcessEmbeddingsWorker{drainer: drainer, maxBatches: maxBatches, timeout: timeout}
}

// Timeout limits how long a single drain can run.
func (w *ProcessEmbeddingsWorker) Timeout(*river.Job[service.ProcessEmbeddingsArgs]) time.Duration {
	return w.timeout
}

// Work drains the queue. Per-record failures live on the rows; only a failed claim is
// returned so River retries the job.
func (w *ProcessEmbeddingsWorker) Work(ctx context.Context, job *river.Job[service.ProcessEmbeddingsArgs]) error {
	start := time.Now()

	res, err := w.drainer.DrainQueue(ctx, w.maxBatches)
	if err != nil {
		return fmt.Errorf("process embeddings (source %q): %w", job.Args.Source, err)
	}

	slog.InfoContext(ctx, "embedding: queue drained",
		"job_id", job.ID,
		"source", job.Args.Source,
		"processed", res.Processed,
		"successes", res.Successes,
		"failures", res.Failures,
		"duration", time.Since(start),
	)

	return nil
}
