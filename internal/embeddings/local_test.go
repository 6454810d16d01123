package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vectors "github.com/questforge/embeddings/pkg/embeddings"
)

func TestLocalClient_CreateEmbedding(t *testing.T) {
	ctx := t.Context()
	client := NewLocalClient(256)

	a, err := client.CreateEmbedding(ctx, "The red dragon guards the northern pass")
	require.NoError(t, err)
	require.Len(t, a, 256)

	again, err := client.CreateEmbedding(ctx, "the RED dragon, guards the northern pass!")
	require.NoError(t, err)
	assert.Equal(t, a, again, "case and punctuation do not change the vector")

	related, err := client.CreateEmbedding(ctx, "A dragon sleeps in the northern pass")
	require.NoError(t, err)

	unrelated, err := client.CreateEmbedding(ctx, "Merchants sell bread at the market")
	require.NoError(t, err)

	simRelated, err := vectors.CosineSimilarity(a, related)
	require.NoError(t, err)

	simUnrelated, err := vectors.CosineSimilarity(a, unrelated)
	require.NoError(t, err)

	assert.Greater(t, simRelated, simUnrelated)

	self, err := vectors.CosineSimilarity(a, a)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, self, 1e-5)
}

func TestLocalClient_EmptyInput(t *testing.T) {
	_, err := NewLocalClient(0).CreateEmbedding(t.Context(), "  ... ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestNewLocalClient_DefaultDimensions(t *testing.T) {
	vec, err := NewLocalClient(0).CreateEmbedding(t.Context(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 1536)
}
