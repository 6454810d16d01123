// Package observability provides OpenTelemetry metrics, tracing and log enrichment
// for the embeddings service.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameChunksQueued           = "embeddings_chunks_queued_total"
	MetricNameItemsClaimed           = "embeddings_items_claimed_total"
	MetricNameEmbeddingOutcomes      = "embeddings_outcomes_total"
	MetricNameEmbeddingDuration      = "embeddings_duration_seconds"
	MetricNameEmbeddingWorkerErrors  = "embeddings_worker_errors_total"
	MetricNameTriggerErrors          = "embeddings_trigger_errors_total"
	MetricNameQueueDepth             = "embeddings_queue_depth"
	MetricNameQueryCacheLookups      = "embeddings_query_cache_lookups_total"
	MetricNameQueryEmbeddingDuration = "embeddings_query_embedding_duration_seconds"
	MetricNameRequestBodyTooLarge    = "embeddings_request_body_too_large_total"
	MetricNameRateLimited            = "embeddings_rate_limited_total"
)

// Attribute keys.
const (
	AttrReason  = "reason"
	AttrStatus  = "status"
	AttrSource  = "source"
	AttrOutcome = "outcome"
	AttrRoute   = "route"
)

// AllowedQueueSources for embeddings_chunks_queued_total.
var AllowedQueueSources = map[string]bool{
	"sync":   true,
	"retry":  true,
	"ensure": true,
}

// AllowedOutcomeStatuses for embeddings_outcomes_total and embeddings_duration_seconds.
var AllowedOutcomeStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
}

// AllowedWorkerReasons for embeddings_worker_errors_total.
var AllowedWorkerReasons = map[string]bool{
	"claim_failed":    true,
	"provider_failed": true,
	"empty_content":   true,
	"mark_failed":     true,
	"not_claimed":     true,
	"panic":           true,
	"rate_limit_wait": true,
	"job_failed":      true,
	"job_panicked":    true,
}

// AllowedTriggerReasons for embeddings_trigger_errors_total.
var AllowedTriggerReasons = map[string]bool{
	"enqueue_failed": true,
}

// AllowedQueryCacheOutcomes for embeddings_query_cache_lookups_total.
var AllowedQueryCacheOutcomes = map[string]bool{
	QueryCacheHit:   true,
	QueryCacheMiss:  true,
	QueryCacheError: true,
}

// AllowedRoutes for embeddings_rate_limited_total.
var AllowedRoutes = map[string]bool{
	"retry": true,
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}
