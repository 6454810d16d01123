// Package content adapts the platform's content tables into embeddable items.
package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/questforge/embeddings/internal/models"
)

var (
	// ErrContentNotFound is returned by Source.Get when the item does not exist.
	ErrContentNotFound = errors.New("content not found")
	// ErrUnsupportedContentType is returned by Registry.Source for types without an adapter.
	ErrUnsupportedContentType = errors.New("unsupported content type")
)

// Item is one piece of campaign content with its embeddable text already composed.
type Item struct {
	Type       models.ContentType
	ID         string
	CampaignID string
	Text       string
}

// Key returns the item's content key.
func (i Item) Key() models.ContentKey {
	return models.ContentKey{Type: i.Type, ID: i.ID}
}

// Source lists and fetches one content type.
type Source interface {
	Type() models.ContentType
	List(ctx context.Context, campaignID string) ([]Item, error)
	Get(ctx context.Context, id string) (Item, error)
}

// Querier is the subset of pgxpool.Pool used by the table-backed sources.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Registry maps content types to their sources.
type Registry struct {
	sources map[models.ContentType]Source
	order   []models.ContentType
}

// NewRegistry registers sources in the given order. A later source for the same type wins.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[models.ContentType]Source, len(sources))}

	for _, s := range sources {
		if _, exists := r.sources[s.Type()]; !exists {
			r.order = append(r.order, s.Type())
		}

		r.sources[s.Type()] = s
	}

	return r
}

// Source returns the adapter for t.
func (r *Registry) Source(t models.ContentType) (Source, error) {
	s, ok := r.sources[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, t)
	}

	return s, nil
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []models.ContentType {
	out := make([]models.ContentType, len(r.order))
	copy(out, r.order)

	return out
}
