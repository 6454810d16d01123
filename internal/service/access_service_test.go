package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questforge/embeddings/internal/content"
	"github.com/questforge/embeddings/internal/huberrors"
	"github.com/questforge/embeddings/internal/models"
)

type mockMembershipReader struct {
	getFunc func(ctx context.Context, campaignID, userID string) (models.Membership, error)
}

func (m *mockMembershipReader) GetMembership(ctx context.Context, campaignID, userID string) (models.Membership, error) {
	return m.getFunc(ctx, campaignID, userID)
}

// campaignMembers answers from a fixed table of campaign -> user -> membership.
func campaignMembers(table map[string]map[string]models.Membership) *mockMembershipReader {
	return &mockMembershipReader{getFunc: func(_ context.Context, campaignID, userID string) (models.Membership, error) {
		users, ok := table[campaignID]
		if !ok {
			return models.Membership{}, huberrors.NewNotFoundError("campaign", "campaign not found")
		}

		m := users[userID]
		m.CampaignID = campaignID
		m.UserID = userID

		return m, nil
	}}
}

func TestAccessService_Authorize(t *testing.T) {
	members := campaignMembers(map[string]map[string]models.Membership{
		"c1": {
			"owner":  {IsOwner: true},
			"player": {IsMember: true},
		},
	})
	svc := NewAccessService(members, content.NewRegistry())

	tests := []struct {
		name       string
		userID     string
		campaignID string
		wantErr    error
	}{
		{name: "owner", userID: "owner", campaignID: "c1"},
		{name: "member", userID: "player", campaignID: "c1"},
		{name: "stranger", userID: "someone", campaignID: "c1", wantErr: huberrors.ErrForbidden},
		{name: "unknown campaign", userID: "owner", campaignID: "c9", wantErr: huberrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Authorize(context.Background(), tt.userID, tt.campaignID)
			if tt.wantErr == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAccessService_Authorize_StoreError(t *testing.T) {
	dbErr := errors.New("connection refused")
	svc := NewAccessService(&mockMembershipReader{
		getFunc: func(context.Context, string, string) (models.Membership, error) {
			return models.Membership{}, dbErr
		},
	}, content.NewRegistry())

	err := svc.Authorize(context.Background(), "u", "c1")
	require.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, huberrors.ErrForbidden)
}

func TestAccessService_AuthorizeContent(t *testing.T) {
	notes := &stubSource{contentType: models.ContentTypeNote, items: []content.Item{
		noteItem("n1", "c1", "Title", "Body"),
	}}
	members := campaignMembers(map[string]map[string]models.Membership{
		"c1": {"player": {IsMember: true}},
	})
	svc := NewAccessService(members, content.NewRegistry(notes))

	item, err := svc.AuthorizeContent(context.Background(), "player", noteKey("n1"))
	require.NoError(t, err)
	assert.Equal(t, "c1", item.CampaignID)

	_, err = svc.AuthorizeContent(context.Background(), "stranger", noteKey("n1"))
	require.ErrorIs(t, err, huberrors.ErrForbidden)

	_, err = svc.AuthorizeContent(context.Background(), "player", noteKey("missing"))
	require.ErrorIs(t, err, huberrors.ErrNotFound)

	_, err = svc.AuthorizeContent(context.Background(), "player",
		models.ContentKey{Type: models.ContentTypeAsset, ID: "a1"})
	require.ErrorIs(t, err, content.ErrUnsupportedContentType)
}
