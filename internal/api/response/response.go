// Package response writes JSON and RFC 7807 problem details responses.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// ErrorDetail represents a single error detail in RFC 7807 Problem Details
type ErrorDetail struct {
	Location string `json:"location,omitempty"`
	Message  string `json:"message,omitempty"`
	Value    any    `json:"value,omitempty"`
}

// ProblemDetails represents an RFC 7807 Problem Details error response
type ProblemDetails struct {
	Type     string        `json:"type,omitempty"`
	Title    string        `json:"title"`
	Status   int           `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Instance string        `json:"instance,omitempty"`
	Errors   []ErrorDetail `json:"errors,omitempty"`
}

// RateLimitBody is the 429 body of rate-limited routes. Reset is in Unix milliseconds.
type RateLimitBody struct {
	Error string `json:"error"`
	Reset int64  `json:"reset"`
	Limit int    `json:"limit"`
}

// RespondError writes an RFC 7807 Problem Details error response
func RespondError(w http.ResponseWriter, statusCode int, title string, detail string) {
	RespondProblem(w, ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: statusCode,
		Detail: detail,
	})
}

// RespondProblem writes problem as application/problem+json with its Status code.
func RespondProblem(w http.ResponseWriter, problem ProblemDetails) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)

	if err := json.NewEncoder(w).Encode(problem); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// RespondBadRequest writes a 400 Bad Request error response
func RespondBadRequest(w http.ResponseWriter, detail string) {
	RespondError(w, http.StatusBadRequest, "Bad Request", detail)
}

// RespondUnauthorized writes a 401 Unauthorized error response
func RespondUnauthorized(w http.ResponseWriter, detail string) {
	RespondError(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// RespondForbidden writes a 403 Forbidden error response
func RespondForbidden(w http.ResponseWriter, detail string) {
	RespondError(w, http.StatusForbidden, "Forbidden", detail)
}

// RespondNotFound writes a 404 Not Found error response
func RespondNotFound(w http.ResponseWriter, detail string) {
	RespondError(w, http.StatusNotFound, "Not Found", detail)
}

// RespondUnsupportedMediaType writes a 415 response for non-JSON request bodies.
func RespondUnsupportedMediaType(w http.ResponseWriter, detail string) {
	RespondError(w, http.StatusUnsupportedMediaType, "Unsupported Media Type", detail)
}

// RespondRequestEntityTooLarge writes a 413 response naming the byte limit.
func RespondRequestEntityTooLarge(w http.ResponseWriter, limit int64) {
	RespondError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
		"request body exceeds the limit of "+strconv.FormatInt(limit, 10)+" bytes")
}

// RespondInternalServerError writes a 500 Internal Server Error response
func RespondInternalServerError(w http.ResponseWriter, detail string) {
	RespondError(w, http.StatusInternalServerError, "Internal Server Error", detail)
}

// SetRateLimitHeaders sets X-RateLimit-Limit, -Remaining and -Reset (Unix milliseconds).
func SetRateLimitHeaders(w http.ResponseWriter, limit, remaining int, reset time.Time) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.UnixMilli(), 10))
}

// RespondTooManyRequests writes the 429 body with a Retry-After header in whole seconds.
func RespondTooManyRequests(w http.ResponseWriter, limit int, reset time.Time) {
	retryAfter := max(int(time.Until(reset).Round(time.Second)/time.Second), 1)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	RespondJSON(w, http.StatusTooManyRequests, RateLimitBody{
		Error: "Too many requests. Please try again later.",
		Reset: reset.UnixMilli(),
		Limit: limit,
	})
}

// RespondJSON writes a JSON response directly without wrapping
func RespondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}
