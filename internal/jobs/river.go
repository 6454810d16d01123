package jobs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/questforge/embeddings/internal/service"
)

// ClientConfig configures the River client.
type ClientConfig struct {
	// Workers is the number of concurrent process_embeddings jobs (default 1).
	Workers int
	// ProcessInterval schedules a periodic process_embeddings job. Zero disables it.
	ProcessInterval time.Duration
	MaxAttempts     int
	Logger          *slog.Logger
}

// NewClient creates a River client serving the embeddings queue with workers registered.
func NewClient(
	pool *pgxpool.Pool, workers *river.Workers, errorHandler river.ErrorHandler, cfg ClientConfig,
) (*river.Client[pgx.Tx], error) {
	client, err := river.NewClient(riverpgxv5.New(pool), riverConfig(workers, errorHandler, cfg))
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}

	return client, nil
}

// NewInsertOnlyClient creates a River client that only inserts jobs. The API server's
// workers run them.
func NewInsertOnlyClient(pool *pgxpool.Pool) (*river.Client[pgx.Tx], error) {
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		return nil, fmt.Errorf("create river insert client: %w", err)
	}

	return client, nil
}

func riverConfig(workers *river.Workers, errorHandler river.ErrorHandler, cfg ClientConfig) *river.Config {
	maxWorkers := cfg.Workers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	return &river.Config{
		Queues: map[string]river.QueueConfig{
			service.EmbeddingsQueueName: {MaxWorkers: maxWorkers},
		},
		Workers:      workers,
		ErrorHandler: errorHandler,
		PeriodicJobs: PeriodicJobs(cfg.ProcessInterval, cfg.MaxAttempts),
		Logger:       cfg.Logger,
	}
}

// PeriodicJobs returns the periodic process_embeddings job for interval, or nil when interval <= 0.
func PeriodicJobs(interval time.Duration, maxAttempts int) []*river.PeriodicJob {
	if interval <= 0 {
		return nil
	}

	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(interval),
			func() (river.JobArgs, *river.InsertOpts) {
				return service.ProcessEmbeddingsArgs{Source: "periodic"}, service.ProcessInsertOpts(maxAttempts)
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}
}
