package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/questforge/embeddings/internal/huberrors"
	"github.com/questforge/embeddings/internal/models"
)

// CampaignsRepository reads campaign ownership and membership owned by the platform.
type CampaignsRepository struct {
	db *pgxpool.Pool
}

// NewCampaignsRepository creates a new campaigns repository.
func NewCampaignsRepository(db *pgxpool.Pool) *CampaignsRepository {
	return &CampaignsRepository{db: db}
}

// GetMembership returns how userID relates to the campaign.
// Returns a huberrors.NotFoundError when the campaign does not exist.
func (r *CampaignsRepository) GetMembership(ctx context.Context, campaignID, userID string) (models.Membership, error) {
	m := models.Membership{CampaignID: campaignID, UserID: userID}

	err := r.db.QueryRow(ctx, `
		SELECT c.owner_id = $2,
		       EXISTS (SELECT 1 FROM campaign_members cm WHERE cm.campaign_id = c.id AND cm.user_id = $2)
		FROM campaigns c
		WHERE c.id = $1`,
		campaignID, userID,
	).Scan(&m.IsOwner, &m.IsMember)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return m, huberrors.NewNotFoundError("campaign", "campaign not found")
		}

		return m, fmt.Errorf("get campaign membership: %w", err)
	}

	return m, nil
}
