package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/questforge/embeddings/internal/models"
	"github.com/questforge/embeddings/internal/observability"
	"github.com/questforge/embeddings/pkg/cache"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

// SearchStore provides the nearest neighbour read used by search.
type SearchStore interface {
	SearchSimilar(ctx context.Context, q models.SimilarityQuery) ([]models.ScoredRecord, error)
}

// SearchParams is the input of Search. Zero Limit uses the configured default;
// nil MinScore uses the configured threshold.
type SearchParams struct {
	Query        string
	CampaignID   string
	Limit        int
	ContentTypes []models.ContentType
	MinScore     *float64
}

// SearchService embeds a query and ranks a campaign's completed chunks against it.
type SearchService struct {
	embeddingClient EmbeddingClient
	store           SearchStore
	queryCache      *cache.LoaderCache[string, []float32]
	cacheMetrics    observability.CacheMetrics
	defaultLimit    int
	minScore        float64
	logger          *slog.Logger
}

// SearchServiceParams configures SearchService. QueryCache and CacheMetrics may be nil (no caching).
type SearchServiceParams struct {
	EmbeddingClient EmbeddingClient
	Store           SearchStore
	QueryCache      *cache.LoaderCache[string, []float32]
	CacheMetrics    observability.CacheMetrics
	DefaultLimit    int
	MinScore        float64
	Logger          *slog.Logger
}

// NewSearchService creates a SearchService.
func NewSearchService(p SearchServiceParams) *SearchService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := p.DefaultLimit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	return &SearchService{
		embeddingClient: p.EmbeddingClient,
		store:           p.Store,
		queryCache:      p.QueryCache,
		cacheMetrics:    p.CacheMetrics,
		defaultLimit:    min(limit, maxSearchLimit),
		minScore:        p.MinScore,
		logger:          logger,
	}
}

// Search returns completed chunks of p.CampaignID ordered by descending similarity to p.Query.
// Requires a non-empty campaign and a non-blank query.
func (s *SearchService) Search(ctx context.Context, p SearchParams) ([]models.ScoredRecord, error) {
	if p.CampaignID == "" {
		return nil, ErrMissingCampaignID
	}

	query := strings.TrimSpace(p.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	limit := p.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}

	limit = min(limit, maxSearchLimit)

	minScore := s.minScore
	if p.MinScore != nil {
		minScore = *p.MinScore
	}

	embedding, err := s.queryEmbedding(ctx, query)
	if err != nil {
		s.logger.ErrorContext(ctx, "search: create embedding failed", "error", err, "campaign_id", p.CampaignID)

		return nil, fmt.Errorf("create embedding: %w", err)
	}

	results, err := s.store.SearchSimilar(ctx, models.SimilarityQuery{
		CampaignID:   p.CampaignID,
		Embedding:    embedding,
		ContentTypes: p.ContentTypes,
		MinScore:     minScore,
		Limit:        limit,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "search: nearest failed", "error", err, "campaign_id", p.CampaignID)

		return nil, fmt.Errorf("search similar: %w", err)
	}

	return results, nil
}

func (s *SearchService) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if s.queryCache == nil {
		return s.embedQuery(ctx, query)
	}

	vec, hit, err := s.queryCache.GetWithStats(ctx, query, s.embedQuery)
	if err != nil {
		s.recordLookup(ctx, observability.QueryCacheError)

		return nil, fmt.Errorf("query embedding: %w", err)
	}

	if hit {
		s.recordLookup(ctx, observability.QueryCacheHit)
	} else {
		s.recordLookup(ctx, observability.QueryCacheMiss)
	}

	return vec, nil
}

// embedQuery calls the provider and records its latency.
func (s *SearchService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	start := time.Now()

	vec, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err == nil && s.cacheMetrics != nil {
		s.cacheMetrics.RecordQueryEmbeddingDuration(ctx, time.Since(start))
	}

	return vec, err
}

func (s *SearchService) recordLookup(ctx context.Context, outcome string) {
	if s.cacheMetrics != nil {
		s.cacheMetrics.RecordQueryCacheLookup(ctx, outcome)
	}
}

// NewQueryCache creates the query embedding cache keyed by the trimmed query text.
func NewQueryCache(size int) (*cache.LoaderCache[string, []float32], error) {
	c, err := cache.NewLoaderCache[string, []float32](size, func(q string) string { return q })
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}

	return c, nil
}
