package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/questforge/embeddings/internal/api/response"
	"github.com/questforge/embeddings/internal/api/validation"
	"github.com/questforge/embeddings/internal/content"
	"github.com/questforge/embeddings/internal/huberrors"
	"github.com/questforge/embeddings/internal/service"
)

// respondServiceError maps service errors to problem responses. Unknown errors are logged
// and answered with a generic 500 carrying fallback.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var (
		notFound  *huberrors.NotFoundError
		invalid   *huberrors.ValidationError
		forbidden *huberrors.ForbiddenError
		limited   *huberrors.LimitExceededError
	)

	switch {
	case errors.As(err, &notFound):
		response.RespondNotFound(w, notFound.Error())
	case errors.As(err, &forbidden):
		response.RespondForbidden(w, forbidden.Error())
	case errors.As(err, &invalid):
		response.RespondBadRequest(w, invalid.Error())
	case errors.As(err, &limited):
		response.SetRateLimitHeaders(w, limited.Limit, limited.Remaining, limited.Reset)
		response.RespondTooManyRequests(w, limited.Limit, limited.Reset)
	case errors.Is(err, service.ErrMissingCampaignID), errors.Is(err, service.ErrEmptyQuery):
		response.RespondBadRequest(w, err.Error())
	case errors.Is(err, content.ErrUnsupportedContentType):
		response.RespondBadRequest(w, "unsupported content type")
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		response.RespondInternalServerError(w, fallback)
	}
}

// decodeAndValidate decodes a JSON body into dst and validates it. It writes the error
// response and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := validation.DecodeJSON(r, dst); err != nil {
		if errors.Is(err, validation.ErrUnsupportedMediaType) {
			response.RespondUnsupportedMediaType(w, err.Error())

			return false
		}

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondRequestEntityTooLarge(w, tooLarge.Limit)

			return false
		}

		response.RespondBadRequest(w, "Invalid request body")

		return false
	}

	if err := validation.ValidateStruct(dst); err != nil {
		validation.RespondValidationError(w, err)

		return false
	}

	return true
}
