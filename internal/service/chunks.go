package service

import (
	"github.com/questforge/embeddings/internal/models"
	"github.com/questforge/embeddings/pkg/chunking"
)

// ChunkOptions are the chunker settings applied on every enqueue path.
// The zero value uses the chunker defaults.
type ChunkOptions struct {
	MaxSize int
	Overlap int
}

// chunkInputs splits text and hashes each chunk for the record store.
func chunkInputs(text string, o ChunkOptions) []models.ChunkInput {
	var opts []chunking.Option
	if o.MaxSize > 0 {
		opts = append(opts, chunking.WithMaxSize(o.MaxSize), chunking.WithOverlap(o.Overlap))
	}

	chunks := chunking.Split(text, opts...)

	inputs := make([]models.ChunkInput, 0, len(chunks))
	for _, c := range chunks {
		inputs = append(inputs, models.NewChunkInput(c.Index, c.Text))
	}

	return inputs
}
