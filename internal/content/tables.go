package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/questforge/embeddings/internal/models"
)

// ComposeNoteText joins a note's title and body the way notes are embedded.
func ComposeNoteText(title, body string) string {
	return title + "\n\n" + body
}

// ComposeAssetText joins an asset's title, description and body the way assets are embedded.
func ComposeAssetText(title, description, body string) string {
	return title + "\n" + description + "\n\n" + body
}

// NotesSource reads the notes table.
type NotesSource struct {
	db Querier
}

// NewNotesSource creates a notes source.
func NewNotesSource(db Querier) *NotesSource {
	return &NotesSource{db: db}
}

// Type implements Source.
func (s *NotesSource) Type() models.ContentType { return models.ContentTypeNote }

// List returns every note of the campaign.
func (s *NotesSource) List(ctx context.Context, campaignID string) ([]Item, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, campaign_id::text, coalesce(title, ''), coalesce(content, '')
		FROM notes
		WHERE campaign_id = $1
		ORDER BY id`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	return collectItems(rows, models.ContentTypeNote, scanNote)
}

// Get returns one note.
func (s *NotesSource) Get(ctx context.Context, id string) (Item, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id::text, campaign_id::text, coalesce(title, ''), coalesce(content, '')
		FROM notes
		WHERE id = $1`, id)

	item, err := scanNote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrContentNotFound
		}

		return Item{}, fmt.Errorf("get note: %w", err)
	}

	item.Type = models.ContentTypeNote

	return item, nil
}

func scanNote(row pgx.Row) (Item, error) {
	var item Item

	var title, body string
	if err := row.Scan(&item.ID, &item.CampaignID, &title, &body); err != nil {
		return Item{}, err
	}

	item.Text = ComposeNoteText(title, body)

	return item, nil
}

// AssetsSource reads the assets table.
type AssetsSource struct {
	db Querier
}

// NewAssetsSource creates an assets source.
func NewAssetsSource(db Querier) *AssetsSource {
	return &AssetsSource{db: db}
}

// Type implements Source.
func (s *AssetsSource) Type() models.ContentType { return models.ContentTypeAsset }

// List returns every asset of the campaign.
func (s *AssetsSource) List(ctx context.Context, campaignID string) ([]Item, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, campaign_id::text, coalesce(title, ''), coalesce(description, ''), coalesce(content, '')
		FROM assets
		WHERE campaign_id = $1
		ORDER BY id`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}

	return collectItems(rows, models.ContentTypeAsset, scanAsset)
}

// Get returns one asset.
func (s *AssetsSource) Get(ctx context.Context, id string) (Item, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id::text, campaign_id::text, coalesce(title, ''), coalesce(description, ''), coalesce(content, '')
		FROM assets
		WHERE id = $1`, id)

	item, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrContentNotFound
		}

		return Item{}, fmt.Errorf("get asset: %w", err)
	}

	item.Type = models.ContentTypeAsset

	return item, nil
}

func scanAsset(row pgx.Row) (Item, error) {
	var item Item

	var title, description, body string
	if err := row.Scan(&item.ID, &item.CampaignID, &title, &description, &body); err != nil {
		return Item{}, err
	}

	item.Text = ComposeAssetText(title, description, body)

	return item, nil
}

func collectItems(rows pgx.Rows, t models.ContentType, scan func(pgx.Row) (Item, error)) ([]Item, error) {
	defer rows.Close()

	var items []Item

	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t, err)
		}

		item.Type = t
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", t, err)
	}

	return items, nil
}
