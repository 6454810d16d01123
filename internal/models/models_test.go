package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContentType(t *testing.T) {
	tests := []struct {
		input   string
		want    ContentType
		wantErr bool
	}{
		{"note", ContentTypeNote, false},
		{"notes", ContentTypeNote, false},
		{" Notes ", ContentTypeNote, false},
		{"asset", ContentTypeAsset, false},
		{"ASSETS", ContentTypeAsset, false},
		{"session", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseContentType(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidContentType)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsValid())
		})
	}
}

func TestParseContentTypes_Dedupes(t *testing.T) {
	got, err := ParseContentTypes([]string{"notes", "note", "assets"})
	require.NoError(t, err)
	assert.Equal(t, []ContentType{ContentTypeNote, ContentTypeAsset}, got)

	_, err = ParseContentTypes([]string{"notes", "maps"})
	assert.ErrorIs(t, err, ErrInvalidContentType)
}

func TestContentType_Collection(t *testing.T) {
	assert.Equal(t, "notes", ContentTypeNote.Collection())
	assert.Equal(t, "assets", ContentTypeAsset.Collection())
}

func TestParseEmbeddingStatus(t *testing.T) {
	for _, s := range []string{"pending", "processing", "completed", "failed"} {
		got, err := ParseEmbeddingStatus(s)
		require.NoError(t, err)
		assert.Equal(t, EmbeddingStatus(s), got)
	}

	_, err := ParseEmbeddingStatus("done")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestAggregateStatus(t *testing.T) {
	rec := func(s EmbeddingStatus) EmbeddingRecord { return EmbeddingRecord{Status: s} }

	tests := []struct {
		name    string
		records []EmbeddingRecord
		want    EmbeddingStatus
	}{
		{"none", nil, StatusPending},
		{"all completed", []EmbeddingRecord{rec(StatusCompleted), rec(StatusCompleted)}, StatusCompleted},
		{"one failed", []EmbeddingRecord{rec(StatusCompleted), rec(StatusFailed)}, StatusFailed},
		{"processing counts as pending", []EmbeddingRecord{rec(StatusCompleted), rec(StatusProcessing)}, StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateStatus(tt.records))
		})
	}
}

func TestStatusCounts(t *testing.T) {
	var c StatusCounts
	c.Add(StatusPending, 2)
	c.Add(StatusFailed, 1)
	c.Add(StatusCompleted, 4)
	c.Add("bogus", 10)

	assert.Equal(t, int64(7), c.Total())
	assert.Equal(t, int64(2), c.Pending)
}

func TestHashContent(t *testing.T) {
	assert.Equal(t, HashContent("a"), HashContent("a"))
	assert.NotEqual(t, HashContent("a"), HashContent("b"))
	assert.Len(t, HashContent(""), 64)

	in := NewChunkInput(3, "hello")
	assert.Equal(t, 3, in.Index)
	assert.Equal(t, HashContent("hello"), in.Hash)
}
