package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/questforge/embeddings/internal/api/response"
	"github.com/questforge/embeddings/internal/ratelimit"
)

// RateLimitRecorder records a rejected request for route. Pass nil when metrics are disabled.
type RateLimitRecorder interface {
	RecordRateLimited(ctx context.Context, route string)
}

// RateLimit admits requests per client IP through limiter. Every response carries
// X-RateLimit-Limit, -Remaining and -Reset; rejected requests get 429 {error, reset, limit}.
// trustProxy keys on the proxy-appended X-Forwarded-For entry or X-Real-IP before the socket address.
func RateLimit(
	limiter *ratelimit.Limiter, recorder RateLimitRecorder, route string, trustProxy bool,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			d := limiter.Allow(ip)

			response.SetRateLimitHeaders(w, d.Limit, d.Remaining, d.Reset)

			if !d.Allowed {
				if recorder != nil {
					recorder.RecordRateLimited(r.Context(), route)
				}

				slog.InfoContext(r.Context(), "rate limit: request rejected", "route", route, "client_ip", ip)
				response.RespondTooManyRequests(w, d.Limit, d.Reset)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the last X-Forwarded-For entry, then X-Real-IP (both only when trustProxy),
// then the host part of RemoteAddr. Earlier X-Forwarded-For entries come from the client and
// are never used as the key.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
			last := xff[len(xff)-1]
			if i := strings.LastIndexByte(last, ','); i >= 0 {
				last = last[i+1:]
			}

			if ip := strings.TrimSpace(last); ip != "" {
				return ip
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
