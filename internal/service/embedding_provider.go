package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/questforge/embeddings/internal/config"
	"github.com/questforge/embeddings/internal/embeddings"
	"github.com/questforge/embeddings/internal/googleai"
	"github.com/questforge/embeddings/internal/openai"
)

// ErrUnsupportedEmbeddingProvider is returned for an unknown EMBEDDING_PROVIDER.
var ErrUnsupportedEmbeddingProvider = errors.New("unsupported embedding provider")

// ProviderConfig selects and configures the embedding backend.
type ProviderConfig struct {
	Provider   string
	Model      string
	APIKey     string
	Dimensions int
	// BaseURL overrides the OpenAI endpoint (OpenAI-compatible gateways, tests).
	BaseURL string
}

// ProviderConfigFromConfig maps application config to a ProviderConfig.
func ProviderConfigFromConfig(cfg *config.Config) ProviderConfig {
	return ProviderConfig{
		Provider:   cfg.EmbeddingProvider,
		Model:      cfg.EmbeddingModel,
		APIKey:     cfg.EmbeddingProviderAPIKey,
		Dimensions: cfg.EmbeddingDimensions,
	}
}

// EmbeddingClients pairs the client used for stored chunks with the one used for
// search queries. They are the same client unless the provider distinguishes the two.
type EmbeddingClients struct {
	Documents EmbeddingClient
	Queries   EmbeddingClient
}

// NewEmbeddingClients builds the clients for p.Provider.
// Gemini receives the RETRIEVAL_DOCUMENT / RETRIEVAL_QUERY task hints.
func NewEmbeddingClients(ctx context.Context, p ProviderConfig) (EmbeddingClients, error) {
	if p.Provider != config.ProviderGoogle {
		client, err := NewEmbeddingClient(ctx, p, "")
		if err != nil {
			return EmbeddingClients{}, err
		}

		return EmbeddingClients{Documents: client, Queries: client}, nil
	}

	docs, err := NewEmbeddingClient(ctx, p, "RETRIEVAL_DOCUMENT")
	if err != nil {
		return EmbeddingClients{}, err
	}

	queries, err := NewEmbeddingClient(ctx, p, "RETRIEVAL_QUERY")
	if err != nil {
		return EmbeddingClients{}, err
	}

	return EmbeddingClients{Documents: docs, Queries: queries}, nil
}

// NewEmbeddingClient builds the client for p.Provider. taskType is only used by Gemini.
func NewEmbeddingClient(ctx context.Context, p ProviderConfig, taskType string) (EmbeddingClient, error) {
	switch p.Provider {
	case config.ProviderOpenAI:
		opts := []openai.ClientOption{
			openai.WithModel(p.Model),
			openai.WithDimensions(p.Dimensions),
		}
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		}

		return openai.NewClient(p.APIKey, opts...), nil
	case config.ProviderGoogle:
		client, err := googleai.NewClient(ctx, p.APIKey,
			googleai.WithModel(p.Model),
			googleai.WithDimensions(p.Dimensions),
			googleai.WithTaskType(taskType),
		)
		if err != nil {
			return nil, fmt.Errorf("create google embedding client: %w", err)
		}

		return client, nil
	case config.ProviderLocal:
		return embeddings.NewLocalClient(p.Dimensions), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEmbeddingProvider, p.Provider)
	}
}
