// Package pipeline assembles the embedding services shared by the API server and the CLI.
package pipeline

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/questforge/embeddings/internal/config"
	"github.com/questforge/embeddings/internal/content"
	"github.com/questforge/embeddings/internal/observability"
	"github.com/questforge/embeddings/internal/repository"
	"github.com/questforge/embeddings/internal/service"
)

// Pipeline holds the stores, content sources and clients every entry point needs.
type Pipeline struct {
	Store     *repository.EmbeddingsRepository
	Campaigns *repository.CampaignsRepository
	Sources   *content.Registry
	Clients   service.EmbeddingClients
	Processor *service.QueueProcessor
	Chunks    service.ChunkOptions

	cfg     *config.Config
	metrics observability.EmbeddingMetrics
}

// New wires the pipeline on db. metrics may be nil when metrics are disabled.
func New(ctx context.Context, cfg *config.Config, db *pgxpool.Pool, metrics *observability.Metrics) (*Pipeline, error) {
	clients, err := service.NewEmbeddingClients(ctx, service.ProviderConfigFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create embedding clients: %w", err)
	}

	var embeddingMetrics observability.EmbeddingMetrics
	if metrics != nil {
		embeddingMetrics = metrics.Embeddings
	}

	store := repository.NewEmbeddingsRepository(db)

	processor := service.NewQueueProcessor(store, clients.Documents, service.ProcessorConfig{
		BatchSize:     cfg.EmbeddingBatchSize,
		MaxConcurrent: cfg.EmbeddingMaxConcurrent,
		RateLimit:     cfg.EmbeddingRateLimit,
		ClaimTimeout:  cfg.EmbeddingClaimTimeout,
	}, embeddingMetrics)

	return &Pipeline{
		Store:     store,
		Campaigns: repository.NewCampaignsRepository(db),
		Sources:   content.NewRegistry(content.NewNotesSource(db), content.NewAssetsSource(db)),
		Clients:   clients,
		Processor: processor,
		Chunks:    service.ChunkOptions{MaxSize: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		cfg:       cfg,
		metrics:   embeddingMetrics,
	}, nil
}

// Metrics returns the embedding collectors, or nil when metrics are disabled.
func (p *Pipeline) Metrics() observability.EmbeddingMetrics {
	return p.metrics
}

// SyncService returns a sync service that signals trigger after enqueueing. trigger may be nil.
func (p *Pipeline) SyncService(trigger service.ProcessTrigger) *service.SyncService {
	return service.NewSyncService(p.Store, p.Sources, trigger, p.Chunks, p.metrics)
}

// StatusService returns a status service. trigger may be nil.
func (p *Pipeline) StatusService(trigger service.ProcessTrigger) *service.StatusService {
	return service.NewStatusService(p.Store, p.Sources, trigger, p.Chunks, p.metrics)
}

// RetryService returns a retry service that processes through the shared queue processor.
func (p *Pipeline) RetryService() *service.RetryService {
	return service.NewRetryService(p.Store, p.Sources, p.Processor, p.Chunks, p.metrics)
}

// AccessService returns the campaign access checker.
func (p *Pipeline) AccessService() *service.AccessService {
	return service.NewAccessService(p.Campaigns, p.Sources)
}

// SearchService returns a search service with a query embedding cache of cfg.QueryCacheSize.
func (p *Pipeline) SearchService(cacheMetrics observability.CacheMetrics) (*service.SearchService, error) {
	queryCache, err := service.NewQueryCache(p.cfg.QueryCacheSize)
	if err != nil {
		return nil, err
	}

	return service.NewSearchService(service.SearchServiceParams{
		EmbeddingClient: p.Clients.Queries,
		Store:           p.Store,
		QueryCache:      queryCache,
		CacheMetrics:    cacheMetrics,
		DefaultLimit:    p.cfg.SearchDefaultLimit,
		MinScore:        p.cfg.SearchMinScore,
	}), nil
}
