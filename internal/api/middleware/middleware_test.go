package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questforge/embeddings/internal/api/response"
	"github.com/questforge/embeddings/internal/auth"
	"github.com/questforge/embeddings/internal/observability"
	"github.com/questforge/embeddings/internal/ratelimit"
)

const jwtSecret = "test-jwt-secret-with-enough-entropy"

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func TestAuth(t *testing.T) {
	handler := Auth("service-key")(http.HandlerFunc(okHandler))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid", header: "Bearer service-key", want: http.StatusOK},
		{name: "lowercase scheme", header: "bearer service-key", want: http.StatusOK},
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic service-key", want: http.StatusUnauthorized},
		{name: "wrong key", header: "Bearer other-key", want: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/embeddings/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuth_EmptySecretRejectsAll(t *testing.T) {
	handler := Auth("")(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodPost, "/embeddings/cron/process", nil)
	req.Header.Set("Authorization", "Bearer anything")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserAuth(t *testing.T) {
	var gotUser string

	handler := UserAuth(jwtSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = auth.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token, err := auth.IssueToken(jwtSecret, "user-42", time.Hour)
	require.NoError(t, err)

	expired, err := auth.IssueToken(jwtSecret, "user-42", -time.Hour)
	require.NoError(t, err)

	t.Run("valid token sets user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/embeddings/sync", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-42", gotUser)
	})

	for name, header := range map[string]string{
		"expired": "Bearer " + expired,
		"garbage": "Bearer abc.def.ghi",
		"missing": "",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/embeddings/sync", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

type rateLimitRecorder struct {
	mu     sync.Mutex
	routes []string
}

func (r *rateLimitRecorder) RecordRateLimited(_ context.Context, route string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes = append(r.routes, route)
}

func TestRateLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.New(5, time.Minute, 0, ratelimit.WithClock(func() time.Time { return now }))
	recorder := &rateLimitRecorder{}
	handler := RateLimit(limiter, recorder, "retry", false)(http.HandlerFunc(okHandler))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/embeddings/retry", nil)
		req.RemoteAddr = ip + ":41000"

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		return rec
	}

	for i := range 5 {
		rec := send("203.0.113.7")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(4-i), rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := send("203.0.113.7")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))

	var body response.RateLimitBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 5, body.Limit)
	assert.Greater(t, body.Reset, now.UnixMilli())
	assert.NotEmpty(t, body.Error)
	assert.Equal(t, []string{"retry"}, recorder.routes)

	assert.Equal(t, http.StatusOK, send("198.51.100.2").Code, "other clients keep their own budget")

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusOK, send("203.0.113.7").Code, "budget refills after the window")
}

func TestRateLimit_RotatedForwardedForDoesNotEvade(t *testing.T) {
	sendAll := func(t *testing.T, trustProxy bool, forwarded func(i int) string) int {
		t.Helper()

		handler := RateLimit(ratelimit.New(2, time.Minute, 0), nil, "retry", trustProxy)(http.HandlerFunc(okHandler))

		admitted := 0
		for i := range 20 {
			req := httptest.NewRequest(http.MethodPost, "/embeddings/retry", nil)
			req.RemoteAddr = "203.0.113.7:41000"
			req.Header.Set("X-Forwarded-For", forwarded(i))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code == http.StatusOK {
				admitted++
			}
		}

		return admitted
	}

	t.Run("headers ignored without a trusted proxy", func(t *testing.T) {
		admitted := sendAll(t, false, func(i int) string { return "10.0.0." + strconv.Itoa(i) })
		assert.Equal(t, 2, admitted)
	})

	t.Run("client-supplied entries ignored behind a proxy", func(t *testing.T) {
		// The proxy appends the address it saw; everything to its left came from the client.
		admitted := sendAll(t, true, func(i int) string { return "10.0.0." + strconv.Itoa(i) + ", 198.51.100.9" })
		assert.Equal(t, 2, admitted)
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trustProxy bool
		want       string
	}{
		{name: "forwarded last entry", headers: map[string]string{"X-Forwarded-For": " 1.2.3.4 , 5.6.7.8 "}, trustProxy: true, want: "5.6.7.8"},
		{name: "forwarded single entry", headers: map[string]string{"X-Forwarded-For": "1.2.3.4"}, trustProxy: true, want: "1.2.3.4"},
		{name: "empty forwarded falls back to real ip", headers: map[string]string{"X-Forwarded-For": " ", "X-Real-IP": "9.9.9.9"}, trustProxy: true, want: "9.9.9.9"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "9.9.9.9"}, trustProxy: true, want: "9.9.9.9"},
		{name: "remote addr", remoteAddr: "10.1.1.1:5555", trustProxy: true, want: "10.1.1.1"},
		{name: "ipv6 remote addr", remoteAddr: "[::1]:8080", want: "::1"},
		{name: "proxy headers ignored", headers: map[string]string{"X-Forwarded-For": "1.2.3.4"}, remoteAddr: "10.1.1.1:5555", want: "10.1.1.1"},
		{name: "unparseable remote addr", remoteAddr: "pipe", want: "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.remoteAddr != "" {
				req.RemoteAddr = tt.remoteAddr
			}

			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, clientIP(req, tt.trustProxy))
		})
	}
}

type bodyTooLargeRecorder struct{ count int }

func (b *bodyTooLargeRecorder) RecordRequestBodyTooLarge(context.Context) { b.count++ }

func TestMaxBody(t *testing.T) {
	readAll := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.RespondRequestEntityTooLarge(w, tooLarge.Limit)

				return
			}

			response.RespondBadRequest(w, "invalid body")

			return
		}

		w.WriteHeader(http.StatusCreated)
	})

	t.Run("within limit", func(t *testing.T) {
		recorder := &bodyTooLargeRecorder{}
		rec := httptest.NewRecorder()
		MaxBody(16, recorder)(readAll).ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`)))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Zero(t, recorder.count)
	})

	t.Run("declared length over limit", func(t *testing.T) {
		recorder := &bodyTooLargeRecorder{}
		rec := httptest.NewRecorder()
		MaxBody(4, recorder)(readAll).ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`)))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, 1, recorder.count)
	})

	t.Run("streamed body over limit", func(t *testing.T) {
		recorder := &bodyTooLargeRecorder{}
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64)))
		req.ContentLength = -1

		rec := httptest.NewRecorder()
		MaxBody(8, recorder)(readAll).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "8 bytes")
		assert.Equal(t, 1, recorder.count)
	})

	t.Run("repeated reads past limit record once", func(t *testing.T) {
		recorder := &bodyTooLargeRecorder{}
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64)))
		req.ContentLength = -1

		readTwice := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, first := io.ReadAll(r.Body)
			_, second := r.Body.Read(make([]byte, 4))

			assert.Error(t, first)
			assert.Error(t, second)
			w.WriteHeader(http.StatusRequestEntityTooLarge)
		})

		MaxBody(8, recorder)(readTwice).ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, 1, recorder.count)
	})

	t.Run("bodyless request passes through", func(t *testing.T) {
		recorder := &bodyTooLargeRecorder{}
		rec := httptest.NewRecorder()
		MaxBody(4, recorder)(readAll).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Zero(t, recorder.count)
	})

	t.Run("disabled", func(t *testing.T) {
		rec := httptest.NewRecorder()
		MaxBody(0, nil)(readAll).ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64))))

		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestRequestID(t *testing.T) {
	var seen string

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(observability.RequestIDKey).(string)
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("propagates client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	})

	for name, id := range map[string]string{
		"missing":       "",
		"too long":      strings.Repeat("a", maxRequestIDLength+1),
		"non printable": "abc\x01def",
		"space":         "abc def",
	} {
		t.Run("generates when "+name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if id != "" {
				req.Header.Set("X-Request-ID", id)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.NotEqual(t, id, seen)
			assert.Len(t, seen, 36)
			assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestLogging_CapturesStatus(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("short and stout"))
	})

	var got *statusRecorder

	capture := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)

			got, _ = w.(*statusRecorder)
		})
	}

	handler := Logging(capture(inner))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.NotNil(t, got)
	assert.Equal(t, http.StatusTeapot, got.status)
	assert.Equal(t, len("short and stout"), got.bytes)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
