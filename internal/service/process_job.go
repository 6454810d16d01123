package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/questforge/embeddings/internal/observability"
)

const (
	processEmbeddingsKind = "process_embeddings"
	// EmbeddingsQueueName is the River queue used for queue processing jobs.
	EmbeddingsQueueName = "embeddings"
)

// JobInserter inserts River jobs (the River client).
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// ProcessEmbeddingsArgs is the payload of a queue processing job. Source records what
// caused the job (sync, ensure, periodic) for logs only; it is not part of uniqueness.
type ProcessEmbeddingsArgs struct {
	Source string `json:"source,omitempty"`
}

// Kind returns the River job kind.
func (ProcessEmbeddingsArgs) Kind() string { return processEmbeddingsKind }

var _ river.JobArgs = ProcessEmbeddingsArgs{}

// processUniqueStates keeps at most one waiting or running processing job. Completed jobs
// are excluded so a trigger right after a run still schedules a new one.
var processUniqueStates = []rivertype.JobState{
	rivertype.JobStateAvailable,
	rivertype.JobStatePending,
	rivertype.JobStateRetryable,
	rivertype.JobStateRunning,
	rivertype.JobStateScheduled,
}

// ProcessInsertOpts returns the insert options shared by triggers and the periodic job.
func ProcessInsertOpts(maxAttempts int) *river.InsertOpts {
	return &river.InsertOpts{
		Queue:       EmbeddingsQueueName,
		MaxAttempts: maxAttempts,
		UniqueOpts:  river.UniqueOpts{ByState: processUniqueStates},
	}
}

// ProcessTrigger asks for the pending queue to be drained soon.
type ProcessTrigger interface {
	Trigger(ctx context.Context, source string) error
}

// RiverTrigger implements ProcessTrigger by inserting a unique process_embeddings job.
type RiverTrigger struct {
	inserter    JobInserter
	maxAttempts int
}

// NewRiverTrigger creates a trigger backed by inserter.
func NewRiverTrigger(inserter JobInserter, maxAttempts int) *RiverTrigger {
	return &RiverTrigger{inserter: inserter, maxAttempts: maxAttempts}
}

// Trigger inserts a processing job unless one is already waiting or running.
func (t *RiverTrigger) Trigger(ctx context.Context, source string) error {
	res, err := t.inserter.Insert(ctx, ProcessEmbeddingsArgs{Source: source}, ProcessInsertOpts(t.maxAttempts))
	if err != nil {
		return fmt.Errorf("insert process job: %w", err)
	}

	if res != nil && res.UniqueSkippedAsDuplicate {
		slog.Debug("embedding: process job already queued", "source", source)

		return nil
	}

	slog.Debug("embedding: process job enqueued", "source", source)

	return nil
}

// triggerProcessing calls trigger when non-nil and swallows its error after logging it.
func triggerProcessing(
	ctx context.Context, trigger ProcessTrigger, metrics observability.EmbeddingMetrics, source string,
) {
	if trigger == nil {
		return
	}

	if err := trigger.Trigger(ctx, source); err != nil {
		if metrics != nil {
			metrics.RecordTriggerError(ctx, "enqueue_failed")
		}

		slog.WarnContext(ctx, "embedding: trigger processing failed", "source", source, "error", err)
	}
}
