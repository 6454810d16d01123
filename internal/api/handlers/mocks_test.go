package handlers

import (
	"context"
	"net/http"

	"github.com/questforge/embeddings/internal/auth"
	"github.com/questforge/embeddings/internal/content"
	"github.com/questforge/embeddings/internal/huberrors"
	"github.com/questforge/embeddings/internal/models"
	"github.com/questforge/embeddings/internal/service"
)

type mockSyncService struct {
	enqueueFunc func(ctx context.Context, campaignID string, types []models.ContentType, force bool) (
		service.SyncResult, error)
	removeFunc func(ctx context.Context, key models.ContentKey) (int64, error)
}

func (m *mockSyncService) EnqueueContent(
	ctx context.Context, campaignID string, types []models.ContentType, force bool,
) (service.SyncResult, error) {
	return m.enqueueFunc(ctx, campaignID, types, force)
}

func (m *mockSyncService) RemoveContent(ctx context.Context, key models.ContentKey) (int64, error) {
	return m.removeFunc(ctx, key)
}

type mockStatusService struct {
	statusFunc        func(ctx context.Context, recent int) (models.QueueStatusResponse, error)
	contentStatusFunc func(ctx context.Context, key models.ContentKey) (models.ContentStatusResponse, error)
	ensureFunc        func(ctx context.Context, key models.ContentKey) (service.EnsureResult, error)
}

func (m *mockStatusService) Status(ctx context.Context, recent int) (models.QueueStatusResponse, error) {
	return m.statusFunc(ctx, recent)
}

func (m *mockStatusService) ContentStatus(
	ctx context.Context, key models.ContentKey,
) (models.ContentStatusResponse, error) {
	return m.contentStatusFunc(ctx, key)
}

func (m *mockStatusService) EnsureQueued(ctx context.Context, key models.ContentKey) (service.EnsureResult, error) {
	return m.ensureFunc(ctx, key)
}

type mockRetryService struct {
	retryFunc func(ctx context.Context, key models.ContentKey) (service.RetryResult, error)
}

func (m *mockRetryService) Retry(ctx context.Context, key models.ContentKey) (service.RetryResult, error) {
	return m.retryFunc(ctx, key)
}

type mockProcessor struct {
	processFunc func(ctx context.Context) (service.ProcessResult, error)
}

func (m *mockProcessor) ProcessQueue(ctx context.Context) (service.ProcessResult, error) {
	return m.processFunc(ctx)
}

// campaignAccess lets "owner" and "member" into campaign c1; content items live in c1
// unless their id starts with "x".
type campaignAccess struct{}

func (campaignAccess) Authorize(_ context.Context, userID, campaignID string) error {
	if campaignID != "c1" {
		return huberrors.NewNotFoundError("campaign", "campaign not found")
	}

	if userID != "owner" && userID != "member" {
		return huberrors.NewForbiddenError("not a member of this campaign")
	}

	return nil
}

func (a campaignAccess) AuthorizeContent(ctx context.Context, userID string, key models.ContentKey) (content.Item, error) {
	if key.ID == "missing" {
		return content.Item{}, huberrors.NewNotFoundError(key.Type.Collection(), "content not found")
	}

	campaignID := "c1"
	if key.ID[0] == 'x' {
		campaignID = "c2"
	}

	if err := a.Authorize(ctx, userID, campaignID); err != nil {
		return content.Item{}, err
	}

	return content.Item{Type: key.Type, ID: key.ID, CampaignID: campaignID}, nil
}

// asUser injects userID the way middleware.UserAuth does.
func asUser(userID string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID != "" {
			r = r.WithContext(auth.WithUserID(r.Context(), userID))
		}

		next(w, r)
	})
}
