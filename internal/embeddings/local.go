// Package embeddings provides a deterministic, offline embedding client for local
// development and tests.
package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"strings"
	"unicode"

	vectors "github.com/questforge/embeddings/pkg/embeddings"
)

// ErrEmptyInput is returned when CreateEmbedding is called with blank text.
var ErrEmptyInput = errors.New("local embeddings: input text is empty")

const defaultDimensions = 1536

// LocalClient hashes lowercase word tokens into a fixed-size vector (feature hashing),
// so texts sharing words score higher in cosine search. Output is L2-normalized and
// identical for identical input.
type LocalClient struct {
	dimensions int
}

// NewLocalClient creates a local client. dimensions <= 0 uses 1536.
func NewLocalClient(dimensions int) *LocalClient {
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}

	return &LocalClient{dimensions: dimensions}
}

// CreateEmbedding returns the hashed bag-of-words vector of input.
func (c *LocalClient) CreateEmbedding(_ context.Context, input string) ([]float32, error) {
	tokens := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(tokens) == 0 {
		return nil, ErrEmptyInput
	}

	vec := make([]float32, c.dimensions)

	for _, tok := range tokens {
		sum := sha256.Sum256([]byte(tok))
		idx := binary.BigEndian.Uint64(sum[:8]) % uint64(c.dimensions)

		if sum[8]&1 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}

	vectors.NormalizeL2(vec)

	return vec, nil
}
