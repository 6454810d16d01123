// Package jobs wires the River client that runs queue processing jobs.
package jobs

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// WorkerErrorRecorder counts job failures (observability.EmbeddingMetrics).
type WorkerErrorRecorder interface {
	RecordWorkerError(ctx context.Context, reason string)
}

// ErrorHandler handles job errors and panics for logging and alerting.
type ErrorHandler struct {
	metrics WorkerErrorRecorder
}

// NewErrorHandler creates an ErrorHandler. metrics may be nil.
func NewErrorHandler(metrics WorkerErrorRecorder) *ErrorHandler {
	return &ErrorHandler{metrics: metrics}
}

// HandleError is called when a job returns an error.
func (h *ErrorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	if h.metrics != nil {
		h.metrics.RecordWorkerError(ctx, "job_failed")
	}

	slog.ErrorContext(ctx, "job failed",
		"job_kind", job.Kind,
		"job_id", job.ID,
		"attempt", job.Attempt,
		"max_attempts", job.MaxAttempts,
		"error", err,
	)

	// nil keeps River's default retry schedule
	return nil
}

// HandlePanic is called when a job panics.
func (h *ErrorHandler) HandlePanic(
	ctx context.Context, job *rivertype.JobRow, panicVal any, trace string,
) *river.ErrorHandlerResult {
	if h.metrics != nil {
		h.metrics.RecordWorkerError(ctx, "job_panicked")
	}

	slog.ErrorContext(ctx, "job panicked",
		"job_kind", job.Kind,
		"job_id", job.ID,
		"attempt", job.Attempt,
		"panic_value", panicVal,
		"stack_trace", trace,
	)

	return nil
}
