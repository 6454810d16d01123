package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/questforge/embeddings/internal/api/response"
	"github.com/questforge/embeddings/internal/auth"
)

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "Missing Authorization header"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", "Invalid Authorization header format. Expected: Bearer <token>"
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", "Bearer token is empty"
	}

	return token, ""
}

// Auth guards service routes with a static bearer secret (API_KEY, CRON_SECRET).
// An empty secret rejects every request.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r)
			if problem != "" {
				response.RespondUnauthorized(w, problem)

				return
			}

			if secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				response.RespondUnauthorized(w, "Invalid API key")

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserAuth verifies a platform access token and stores its subject as the request's user id.
func UserAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r)
			if problem != "" {
				response.RespondUnauthorized(w, problem)

				return
			}

			claims, err := auth.ValidateToken(jwtSecret, token)
			if err != nil {
				slog.DebugContext(r.Context(), "auth: token rejected", "error", err)
				response.RespondUnauthorized(w, "Invalid or expired access token")

				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), claims.UserID())))
		})
	}
}
