package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// EmbeddingRecord is one chunk of one content item together with its embedding state.
// Embedding is set only when Status is completed; ErrorMessage only when failed.
type EmbeddingRecord struct {
	ID              uuid.UUID       `json:"id"`
	ContentType     ContentType     `json:"contentType"`
	ContentID       string          `json:"contentId"`
	CampaignID      string          `json:"campaignId"`
	ChunkIndex      int             `json:"chunkIndex"`
	TotalChunks     int             `json:"totalChunks"`
	ContentText     string          `json:"contentText"`
	ContentHash     string          `json:"contentHash"`
	Embedding       []float32       `json:"-"`
	Status          EmbeddingStatus `json:"status"`
	ErrorMessage    *string         `json:"errorMessage,omitempty"`
	LastProcessedAt *time.Time      `json:"lastProcessedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Key returns the content item this record belongs to.
func (r EmbeddingRecord) Key() ContentKey {
	return ContentKey{Type: r.ContentType, ID: r.ContentID}
}

// ContentKey identifies one content item across all of its chunks.
type ContentKey struct {
	Type ContentType
	ID   string
}

func (k ContentKey) String() string {
	return string(k.Type) + "/" + k.ID
}

// ChunkInput is a chunk ready to be written as a pending record.
type ChunkInput struct {
	Index int
	Text  string
	Hash  string
}

// NewChunkInput hashes text and returns the chunk for position index.
func NewChunkInput(index int, text string) ChunkInput {
	return ChunkInput{Index: index, Text: text, Hash: HashContent(text)}
}

// HashContent returns the hex sha256 digest used to detect changed chunk text.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))

	return hex.EncodeToString(sum[:])
}

// ScoredRecord is a completed chunk returned by similarity search.
type ScoredRecord struct {
	ID          uuid.UUID   `json:"id"`
	ContentType ContentType `json:"contentType"`
	ContentID   string      `json:"contentId"`
	CampaignID  string      `json:"campaignId"`
	ChunkIndex  int         `json:"chunkIndex"`
	ContentText string      `json:"contentText"`
	Similarity  float64     `json:"similarity"`
}

// SimilarityQuery is the repository-level input for nearest neighbour search.
type SimilarityQuery struct {
	CampaignID   string
	Embedding    []float32
	ContentTypes []ContentType
	MinScore     float64
	Limit        int
}

// StatusCounts holds the number of records per status.
type StatusCounts struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

// Total returns the sum across all statuses.
func (c StatusCounts) Total() int64 {
	return c.Pending + c.Processing + c.Completed + c.Failed
}

// Add increments the counter for status by n. Unknown statuses are ignored.
func (c *StatusCounts) Add(status EmbeddingStatus, n int64) {
	switch status {
	case StatusPending:
		c.Pending += n
	case StatusProcessing:
		c.Processing += n
	case StatusCompleted:
		c.Completed += n
	case StatusFailed:
		c.Failed += n
	}
}
