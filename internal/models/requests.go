package models

// SyncRequest asks to (re)queue every item of the given types in one campaign.
// ContentTypes accepts "note"/"notes" and "asset"/"assets"; empty means all types.
type SyncRequest struct {
	CampaignID   string   `json:"campaignId" validate:"required,max=255,no_null_bytes"`
	ContentTypes []string `json:"contentTypes,omitempty" validate:"omitempty,max=8,dive,content_type"`
	Force        bool     `json:"force,omitempty"`
}

// ContentRefRequest names one content item, for retry and ensure.
type ContentRefRequest struct {
	ContentType string `json:"contentType" validate:"required,content_type"`
	ContentID   string `json:"contentId" validate:"required,max=255,no_null_bytes"`
}

// SearchRequest is the body of a similarity search.
type SearchRequest struct {
	Query        string   `json:"query" validate:"required,max=4000,no_null_bytes"`
	CampaignID   string   `json:"campaignId" validate:"required,max=255,no_null_bytes"`
	Limit        int      `json:"limit,omitempty" validate:"omitempty,min=1,max=50"`
	ContentTypes []string `json:"contentTypes,omitempty" validate:"omitempty,max=8,dive,content_type"`
	MinScore     *float64 `json:"minScore,omitempty" validate:"omitempty,min=-1,max=1"`
}

// SyncResponse reports how many chunk records a sync queued.
type SyncResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Total   int            `json:"total"`
	PerType map[string]int `json:"perType"`
	Skipped int            `json:"skipped"`
}

// ProcessResponse reports one queue processing run. Both naming schemes for the
// success/failure counters are emitted.
type ProcessResponse struct {
	Processed  int  `json:"processed"`
	Successes  int  `json:"successes"`
	Failures   int  `json:"failures"`
	Successful int  `json:"successful"`
	Failed     int  `json:"failed"`
	Empty      bool `json:"empty"`
}

// NewProcessResponse fills both counter spellings.
func NewProcessResponse(processed, successes, failures int, empty bool) ProcessResponse {
	return ProcessResponse{
		Processed:  processed,
		Successes:  successes,
		Failures:   failures,
		Successful: successes,
		Failed:     failures,
		Empty:      empty,
	}
}

// QueueStatusResponse is the aggregate queue view.
type QueueStatusResponse struct {
	StatusCounts
	Total         int64             `json:"total"`
	RecentPending []EmbeddingRecord `json:"recentPending"`
	RecentFailed  []EmbeddingRecord `json:"recentFailed"`
}

// ContentStatusResponse is the per-item view.
type ContentStatusResponse struct {
	ContentType ContentType       `json:"contentType"`
	ContentID   string            `json:"contentId"`
	Status      EmbeddingStatus   `json:"status"`
	TotalChunks int               `json:"totalChunks"`
	Chunks      []EmbeddingRecord `json:"chunks"`
}

// EnsureResponse tells whether pending records had to be created.
type EnsureResponse struct {
	Created bool `json:"created"`
	Chunks  int  `json:"chunks"`
}

// RetryResponse is returned by the retry endpoint.
type RetryResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Chunks  int              `json:"chunks"`
	Process *ProcessResponse `json:"process,omitempty"`
}

// SearchResponse wraps ranked search results.
type SearchResponse struct {
	Results []ScoredRecord `json:"results"`
}

// DeleteResponse reports how many records were removed for a content item.
type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}
