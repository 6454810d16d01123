package service

import (
	"errors"

	"github.com/questforge/embeddings/internal/repository"
)

// Sentinel errors used by handlers for status mapping.
var (
	ErrMissingCampaignID = errors.New("campaignId is required")
	ErrEmptyQuery        = errors.New("query is required and must be non-empty")
	ErrRecordNotClaimed  = repository.ErrRecordNotClaimed
)
