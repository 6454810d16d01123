package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/questforge/embeddings/internal/content"
	"github.com/questforge/embeddings/internal/huberrors"
	"github.com/questforge/embeddings/internal/models"
)

// MembershipReader looks up a user's relation to a campaign.
type MembershipReader interface {
	GetMembership(ctx context.Context, campaignID, userID string) (models.Membership, error)
}

// AccessService decides whether a platform user may act on a campaign's content.
type AccessService struct {
	members MembershipReader
	sources ContentSources
}

// NewAccessService creates an access service.
func NewAccessService(members MembershipReader, sources ContentSources) *AccessService {
	return &AccessService{members: members, sources: sources}
}

// Authorize returns nil when userID owns or is a member of campaignID.
// A missing campaign is a NotFoundError; any other user is a ForbiddenError.
func (s *AccessService) Authorize(ctx context.Context, userID, campaignID string) error {
	m, err := s.members.GetMembership(ctx, campaignID, userID)
	if err != nil {
		if errors.Is(err, huberrors.ErrNotFound) {
			return err
		}

		return fmt.Errorf("authorize: %w", err)
	}

	if !m.CanAccess() {
		return huberrors.NewForbiddenError("not a member of this campaign")
	}

	return nil
}

// AuthorizeContent resolves the item's campaign and authorizes userID for it.
func (s *AccessService) AuthorizeContent(ctx context.Context, userID string, key models.ContentKey) (content.Item, error) {
	src, err := s.sources.Source(key.Type)
	if err != nil {
		return content.Item{}, fmt.Errorf("authorize: %w", err)
	}

	item, err := src.Get(ctx, key.ID)
	if err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			return content.Item{}, huberrors.NewNotFoundError(key.Type.Collection(), "content not found")
		}

		return content.Item{}, fmt.Errorf("authorize: get %s: %w", key, err)
	}

	if err := s.Authorize(ctx, userID, item.CampaignID); err != nil {
		return content.Item{}, err
	}

	return item, nil
}
