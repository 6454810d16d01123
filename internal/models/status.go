package models

import (
	"errors"
	"fmt"
)

// ErrInvalidStatus is returned when a status string is not recognized.
var ErrInvalidStatus = errors.New("invalid embedding status")

// EmbeddingStatus is the lifecycle state of an embedding record.
type EmbeddingStatus string

const (
	StatusPending    EmbeddingStatus = "pending"
	StatusProcessing EmbeddingStatus = "processing"
	StatusCompleted  EmbeddingStatus = "completed"
	StatusFailed     EmbeddingStatus = "failed"
)

// ParseEmbeddingStatus converts a stored status string to an EmbeddingStatus.
func ParseEmbeddingStatus(s string) (EmbeddingStatus, error) {
	st := EmbeddingStatus(s)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}

	return st, nil
}

// IsValid reports whether s is a known status.
func (s EmbeddingStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further processing is expected without a retry or re-sync.
func (s EmbeddingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AggregateStatus summarizes the chunks of one content item: failed if any chunk
// failed, completed if all completed, pending otherwise. Claimed chunks count as pending.
func AggregateStatus(records []EmbeddingRecord) EmbeddingStatus {
	if len(records) == 0 {
		return StatusPending
	}

	completed := 0

	for _, r := range records {
		switch r.Status {
		case StatusFailed:
			return StatusFailed
		case StatusCompleted:
			completed++
		case StatusPending, StatusProcessing:
		}
	}

	if completed == len(records) {
		return StatusCompleted
	}

	return StatusPending
}
