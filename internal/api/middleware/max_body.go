package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/questforge/embeddings/internal/api/response"
)

// RequestBodyTooLargeRecorder records a request rejected for exceeding the body limit.
// Pass nil when metrics are disabled.
type RequestBodyTooLargeRecorder interface {
	RecordRequestBodyTooLarge(ctx context.Context)
}

// MaxBody caps request bodies at maxBytes. A declared Content-Length above the limit is
// answered with 413 before the handler runs. Streamed bodies are cut off by
// http.MaxBytesReader; the JSON decoder then surfaces *http.MaxBytesError and the handler
// answers 413 itself (see validation.ErrBodyTooLarge). Each rejection is recorded once.
// maxBytes <= 0 disables the limit.
func MaxBody(maxBytes int64, recorder RequestBodyTooLargeRecorder) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				if recorder != nil {
					recorder.RecordRequestBodyTooLarge(r.Context())
				}

				response.RespondRequestEntityTooLarge(w, maxBytes)

				return
			}

			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)

				return
			}

			r.Body = &limitedBody{
				ReadCloser: http.MaxBytesReader(w, r.Body, maxBytes),
				ctx:        r.Context(),
				recorder:   recorder,
			}

			next.ServeHTTP(w, r)
		})
	}
}

// limitedBody records the first read that hits the limit.
type limitedBody struct {
	io.ReadCloser

	ctx      context.Context //nolint:containedctx // request scoped, used only for the recorder
	recorder RequestBodyTooLargeRecorder
	recorded bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)

	var tooLarge *http.MaxBytesError
	if err != nil && !b.recorded && errors.As(err, &tooLarge) {
		b.recorded = true

		if b.recorder != nil {
			b.recorder.RecordRequestBodyTooLarge(b.ctx)
		}
	}

	return n, err //nolint:wrapcheck // io.Reader contract: io.EOF must be returned unwrapped
}
