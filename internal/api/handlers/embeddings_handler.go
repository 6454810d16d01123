package handlers

import (
	"context"
	"net/http"

	"github.com/questforge/embeddings/internal/api/response"
	"github.com/questforge/embeddings/internal/api/validation"
	"github.com/questforge/embeddings/internal/auth"
	"github.com/questforge/embeddings/internal/content"
	"github.com/questforge/embeddings/internal/models"
	"github.com/questforge/embeddings/internal/service"
)

// SyncService enqueues and removes campaign content.
type SyncService interface {
	EnqueueContent(ctx context.Context, campaignID string, types []models.ContentType, force bool) (
		service.SyncResult, error)
	RemoveContent(ctx context.Context, key models.ContentKey) (int64, error)
}

// StatusService reads queue and per-item state.
type StatusService interface {
	Status(ctx context.Context, recent int) (models.QueueStatusResponse, error)
	ContentStatus(ctx context.Context, key models.ContentKey) (models.ContentStatusResponse, error)
	EnsureQueued(ctx context.Context, key models.ContentKey) (service.EnsureResult, error)
}

// RetryService re-chunks and reprocesses one item.
type RetryService interface {
	Retry(ctx context.Context, key models.ContentKey) (service.RetryResult, error)
}

// QueueProcessor processes one batch of the queue.
type QueueProcessor interface {
	ProcessQueue(ctx context.Context) (service.ProcessResult, error)
}

// Authorizer checks a user's campaign access.
type Authorizer interface {
	Authorize(ctx context.Context, userID, campaignID string) error
	AuthorizeContent(ctx context.Context, userID string, key models.ContentKey) (content.Item, error)
}

// EmbeddingsHandler serves the /embeddings routes other than search.
type EmbeddingsHandler struct {
	sync      SyncService
	status    StatusService
	retry     RetryService
	processor QueueProcessor
	access    Authorizer
}

// NewEmbeddingsHandler creates an embeddings handler.
func NewEmbeddingsHandler(
	sync SyncService, status StatusService, retry RetryService, processor QueueProcessor, access Authorizer,
) *EmbeddingsHandler {
	return &EmbeddingsHandler{
		sync:      sync,
		status:    status,
		retry:     retry,
		processor: processor,
		access:    access,
	}
}

// StatusQuery is the query string of GET /embeddings/status.
type StatusQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=100"`
}

// Sync handles POST /embeddings/sync. The caller must own or be a member of the campaign.
func (h *EmbeddingsHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req models.SyncRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	types, err := models.ParseContentTypes(req.ContentTypes)
	if err != nil {
		response.RespondBadRequest(w, err.Error())

		return
	}

	if !authorizeCampaign(w, r, h.access, req.CampaignID) {
		return
	}

	res, err := h.sync.EnqueueContent(r.Context(), req.CampaignID, types, req.Force)
	if err != nil {
		respondServiceError(w, r, err, "Failed to queue content for embedding")

		return
	}

	response.RespondJSON(w, http.StatusOK, res.Response())
}

// Status handles GET /embeddings/status.
func (h *EmbeddingsHandler) Status(w http.ResponseWriter, r *http.Request) {
	var q StatusQuery
	if err := validation.ValidateAndDecodeQueryParams(r, &q); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	res, err := h.status.Status(r.Context(), q.Limit)
	if err != nil {
		respondServiceError(w, r, err, "Failed to read queue status")

		return
	}

	response.RespondJSON(w, http.StatusOK, res)
}

// ContentStatus handles GET /embeddings/status/{contentType}/{contentId}.
func (h *EmbeddingsHandler) ContentStatus(w http.ResponseWriter, r *http.Request) {
	key, ok := contentKeyFromPath(w, r)
	if !ok {
		return
	}

	res, err := h.status.ContentStatus(r.Context(), key)
	if err != nil {
		respondServiceError(w, r, err, "Failed to read content status")

		return
	}

	response.RespondJSON(w, http.StatusOK, res)
}

// Ensure handles POST /embeddings/ensure.
func (h *EmbeddingsHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	key, ok := h.authorizedContentRef(w, r)
	if !ok {
		return
	}

	res, err := h.status.EnsureQueued(r.Context(), key)
	if err != nil {
		respondServiceError(w, r, err, "Failed to queue content")

		return
	}

	response.RespondJSON(w, http.StatusOK, models.EnsureResponse{Created: res.Created, Chunks: res.Chunks})
}

// Retry handles POST /embeddings/retry. Rate limiting is applied by middleware.
func (h *EmbeddingsHandler) Retry(w http.ResponseWriter, r *http.Request) {
	key, ok := h.authorizedContentRef(w, r)
	if !ok {
		return
	}

	res, err := h.retry.Retry(r.Context(), key)
	if err != nil {
		respondServiceError(w, r, err, "Failed to retry embedding")

		return
	}

	response.RespondJSON(w, http.StatusOK, res.Response())
}

// Process handles POST /embeddings/process and POST /embeddings/cron/process.
func (h *EmbeddingsHandler) Process(w http.ResponseWriter, r *http.Request) {
	res, err := h.processor.ProcessQueue(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "Failed to process embedding queue")

		return
	}

	response.RespondJSON(w, http.StatusOK, res.Response())
}

// Delete handles DELETE /embeddings/{contentType}/{contentId}.
func (h *EmbeddingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key, ok := contentKeyFromPath(w, r)
	if !ok {
		return
	}

	n, err := h.sync.RemoveContent(r.Context(), key)
	if err != nil {
		respondServiceError(w, r, err, "Failed to delete embeddings")

		return
	}

	response.RespondJSON(w, http.StatusOK, models.DeleteResponse{Deleted: n})
}

// authorizeCampaign checks the authenticated caller may act on campaignID.
func authorizeCampaign(w http.ResponseWriter, r *http.Request, access Authorizer, campaignID string) bool {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		response.RespondUnauthorized(w, "Missing user identity")

		return false
	}

	if err := access.Authorize(r.Context(), userID, campaignID); err != nil {
		respondServiceError(w, r, err, "Failed to check campaign access")

		return false
	}

	return true
}

// authorizedContentRef decodes a ContentRefRequest and checks the caller may act on the item.
func (h *EmbeddingsHandler) authorizedContentRef(w http.ResponseWriter, r *http.Request) (models.ContentKey, bool) {
	var req models.ContentRefRequest
	if !decodeAndValidate(w, r, &req) {
		return models.ContentKey{}, false
	}

	ct, err := models.ParseContentType(req.ContentType)
	if err != nil {
		response.RespondBadRequest(w, err.Error())

		return models.ContentKey{}, false
	}

	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		response.RespondUnauthorized(w, "Missing user identity")

		return models.ContentKey{}, false
	}

	key := models.ContentKey{Type: ct, ID: req.ContentID}

	if _, err := h.access.AuthorizeContent(r.Context(), userID, key); err != nil {
		respondServiceError(w, r, err, "Failed to check content access")

		return models.ContentKey{}, false
	}

	return key, true
}

func contentKeyFromPath(w http.ResponseWriter, r *http.Request) (models.ContentKey, bool) {
	ct, err := models.ParseContentType(r.PathValue("contentType"))
	if err != nil {
		response.RespondBadRequest(w, err.Error())

		return models.ContentKey{}, false
	}

	id := r.PathValue("contentId")
	if id == "" {
		response.RespondBadRequest(w, "contentId is required")

		return models.ContentKey{}, false
	}

	return models.ContentKey{Type: ct, ID: id}, true
}
