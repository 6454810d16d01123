package handlers

import (
	"context"
	"net/http"

	"github.com/questforge/embeddings/internal/api/response"
	"github.com/questforge/embeddings/internal/models"
	"github.com/questforge/embeddings/internal/service"
)

// SearchService ranks a campaign's completed chunks against a query.
type SearchService interface {
	Search(ctx context.Context, p service.SearchParams) ([]models.ScoredRecord, error)
}

// SearchHandler handles POST /embeddings/search.
type SearchHandler struct {
	service SearchService
	access  Authorizer
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service SearchService, access Authorizer) *SearchHandler {
	return &SearchHandler{service: service, access: access}
}

// Search handles POST /embeddings/search. Only members or the owner of the campaign may search it.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
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

	results, err := h.service.Search(r.Context(), service.SearchParams{
		Query:        req.Query,
		CampaignID:   req.CampaignID,
		Limit:        req.Limit,
		ContentTypes: types,
		MinScore:     req.MinScore,
	})
	if err != nil {
		respondServiceError(w, r, err, "Search failed")

		return
	}

	if results == nil {
		results = []models.ScoredRecord{}
	}

	response.RespondJSON(w, http.StatusOK, models.SearchResponse{Results: results})
}
