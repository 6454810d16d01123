package service

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/questforge/embeddings/internal/content"
	"github.com/questforge/embeddings/internal/embeddings"
	"github.com/questforge/embeddings/internal/models"
	vectors "github.com/questforge/embeddings/pkg/embeddings"
)

// memStore is an in-memory record store with the same state rules as the Postgres repository.
type memStore struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*models.EmbeddingRecord
	now     time.Time
	claimed map[uuid.UUID]int

	claimErr    error
	markDoneErr error
	markFailErr error
	upsertErr   map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		rows:    make(map[uuid.UUID]*models.EmbeddingRecord),
		now:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		claimed: make(map[uuid.UUID]int),
	}
}

func (s *memStore) tick() time.Time {
	s.now = s.now.Add(time.Millisecond)

	return s.now
}

func (s *memStore) find(key models.ContentKey, index int) *models.EmbeddingRecord {
	for _, r := range s.rows {
		if r.ContentType == key.Type && r.ContentID == key.ID && r.ChunkIndex == index {
			return r
		}
	}

	return nil
}

func (s *memStore) insert(key models.ContentKey, campaignID string, c models.ChunkInput, total int) {
	ts := s.tick()
	id := uuid.Must(uuid.NewV7())
	s.rows[id] = &models.EmbeddingRecord{
		ID:          id,
		ContentType: key.Type,
		ContentID:   key.ID,
		CampaignID:  campaignID,
		ChunkIndex:  c.Index,
		TotalChunks: total,
		ContentText: c.Text,
		ContentHash: c.Hash,
		Status:      models.StatusPending,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

func (s *memStore) UpsertContentChunks(
	_ context.Context, key models.ContentKey, campaignID string, chunks []models.ChunkInput, force bool,
) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.upsertErr[key.ID]; err != nil {
		return 0, err
	}

	queued := 0

	for _, c := range chunks {
		r := s.find(key, c.Index)
		if r == nil {
			s.insert(key, campaignID, c, len(chunks))
			queued++

			continue
		}

		if !force && r.ContentHash == c.Hash && r.TotalChunks == len(chunks) && r.Status != models.StatusFailed {
			continue
		}

		r.CampaignID = campaignID
		r.TotalChunks = len(chunks)
		r.ContentText = c.Text
		r.ContentHash = c.Hash
		r.Status = models.StatusPending
		r.Embedding = nil
		r.ErrorMessage = nil
		r.UpdatedAt = s.tick()
		queued++
	}

	for id, r := range s.rows {
		if r.ContentType == key.Type && r.ContentID == key.ID && r.ChunkIndex >= len(chunks) {
			delete(s.rows, id)
		}
	}

	return queued, nil
}

func (s *memStore) ReplaceContentChunks(
	_ context.Context, key models.ContentKey, campaignID string, chunks []models.ChunkInput,
) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.rows {
		if r.ContentType == key.Type && r.ContentID == key.ID {
			delete(s.rows, id)
		}
	}

	for _, c := range chunks {
		s.insert(key, campaignID, c, len(chunks))
	}

	return len(chunks), nil
}

func (s *memStore) claim(limit int, match func(*models.EmbeddingRecord) bool) []models.EmbeddingRecord {
	var candidates []*models.EmbeddingRecord

	for _, r := range s.rows {
		if match(r) {
			candidates = append(candidates, r)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].UpdatedAt.Before(candidates[j].UpdatedAt)
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]models.EmbeddingRecord, 0, len(candidates))

	for _, r := range candidates {
		ts := s.tick()
		r.Status = models.StatusProcessing
		r.LastProcessedAt = &ts
		r.UpdatedAt = ts
		s.claimed[r.ID]++
		out = append(out, *r)
	}

	return out
}

func (s *memStore) ClaimPending(_ context.Context, limit int, claimTimeout time.Duration) ([]models.EmbeddingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimErr != nil {
		return nil, s.claimErr
	}

	cutoff := s.now.Add(-claimTimeout)

	return s.claim(limit, func(r *models.EmbeddingRecord) bool {
		if r.Status == models.StatusPending {
			return true
		}

		return r.Status == models.StatusProcessing && r.LastProcessedAt != nil && r.LastProcessedAt.Before(cutoff)
	}), nil
}

func (s *memStore) ClaimPendingForContent(
	_ context.Context, key models.ContentKey, limit int,
) ([]models.EmbeddingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimErr != nil {
		return nil, s.claimErr
	}

	return s.claim(limit, func(r *models.EmbeddingRecord) bool {
		return r.ContentType == key.Type && r.ContentID == key.ID && r.Status == models.StatusPending
	}), nil
}

func (s *memStore) MarkCompleted(_ context.Context, id uuid.UUID, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.markDoneErr != nil {
		return s.markDoneErr
	}

	r, ok := s.rows[id]
	if !ok || r.Status != models.StatusProcessing {
		return ErrRecordNotClaimed
	}

	r.Status = models.StatusCompleted
	r.Embedding = slices.Clone(embedding)
	r.ErrorMessage = nil
	r.UpdatedAt = s.tick()

	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.markFailErr != nil {
		return s.markFailErr
	}

	r, ok := s.rows[id]
	if !ok || r.Status != models.StatusProcessing {
		return ErrRecordNotClaimed
	}

	r.Status = models.StatusFailed
	r.Embedding = nil
	r.ErrorMessage = &message
	r.UpdatedAt = s.tick()

	return nil
}

func (s *memStore) ListByContent(_ context.Context, key models.ContentKey) ([]models.EmbeddingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.byContentLocked(key), nil
}

func (s *memStore) byContentLocked(key models.ContentKey) []models.EmbeddingRecord {
	var out []models.EmbeddingRecord

	for _, r := range s.rows {
		if r.ContentType == key.Type && r.ContentID == key.ID {
			out = append(out, *r)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })

	return out
}

func (s *memStore) DeleteByContent(_ context.Context, key models.ContentKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64

	for id, r := range s.rows {
		if r.ContentType == key.Type && r.ContentID == key.ID {
			delete(s.rows, id)
			n++
		}
	}

	return n, nil
}

func (s *memStore) CountByStatus(_ context.Context) (models.StatusCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts models.StatusCounts
	for _, r := range s.rows {
		counts.Add(r.Status, 1)
	}

	return counts, nil
}

func (s *memStore) ListRecentByStatus(
	_ context.Context, status models.EmbeddingStatus, limit int,
) ([]models.EmbeddingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.EmbeddingRecord

	for _, r := range s.rows {
		if r.Status == status {
			out = append(out, *r)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })

	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (s *memStore) SearchSimilar(_ context.Context, q models.SimilarityQuery) ([]models.ScoredRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ScoredRecord

	for _, r := range s.rows {
		if r.Status != models.StatusCompleted || r.CampaignID != q.CampaignID {
			continue
		}

		if len(q.ContentTypes) > 0 && !slices.Contains(q.ContentTypes, r.ContentType) {
			continue
		}

		sim, err := vectors.CosineSimilarity(q.Embedding, r.Embedding)
		if err != nil {
			return nil, err
		}

		if sim < q.MinScore {
			continue
		}

		out = append(out, models.ScoredRecord{
			ID:          r.ID,
			ContentType: r.ContentType,
			ContentID:   r.ContentID,
			CampaignID:  r.CampaignID,
			ChunkIndex:  r.ChunkIndex,
			ContentText: r.ContentText,
			Similarity:  sim,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })

	if len(out) > q.Limit {
		out = out[:q.Limit]
	}

	return out, nil
}

// checkInvariants reports rows violating the embedding / error / status rules.
func (s *memStore) checkInvariants() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var problems []string

	for _, r := range s.rows {
		if (r.Embedding != nil) != (r.Status == models.StatusCompleted) {
			problems = append(problems, r.ID.String()+": embedding/status mismatch")
		}

		if r.ErrorMessage != nil && r.Status != models.StatusFailed {
			problems = append(problems, r.ID.String()+": error message on non-failed row")
		}
	}

	return problems
}

func (s *memStore) snapshot(key models.ContentKey) []models.EmbeddingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.byContentLocked(key)
}

// mockEmbeddingClient defaults to the deterministic local client.
type mockEmbeddingClient struct {
	mu         sync.Mutex
	calls      []string
	createFunc func(ctx context.Context, input string) ([]float32, error)
	local      *embeddings.LocalClient
}

func newMockEmbeddingClient() *mockEmbeddingClient {
	return &mockEmbeddingClient{local: embeddings.NewLocalClient(32)}
}

func (m *mockEmbeddingClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, input)
	m.mu.Unlock()

	if m.createFunc != nil {
		return m.createFunc(ctx, input)
	}

	return m.local.CreateEmbedding(ctx, input)
}

func (m *mockEmbeddingClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.calls)
}

// stubSource serves items from memory.
type stubSource struct {
	contentType models.ContentType
	items       []content.Item
	listErr     error
	getErr      error
}

func (s *stubSource) Type() models.ContentType { return s.contentType }

func (s *stubSource) List(_ context.Context, campaignID string) ([]content.Item, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}

	var out []content.Item

	for _, it := range s.items {
		if it.CampaignID == campaignID {
			out = append(out, it)
		}
	}

	return out, nil
}

func (s *stubSource) Get(_ context.Context, id string) (content.Item, error) {
	if s.getErr != nil {
		return content.Item{}, s.getErr
	}

	for _, it := range s.items {
		if it.ID == id {
			return it, nil
		}
	}

	return content.Item{}, content.ErrContentNotFound
}

func (s *stubSource) set(id, text string) {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Text = text

			return
		}
	}
}

func noteItem(id, campaignID, title, body string) content.Item {
	return content.Item{
		Type:       models.ContentTypeNote,
		ID:         id,
		CampaignID: campaignID,
		Text:       content.ComposeNoteText(title, body),
	}
}

func assetItem(id, campaignID, title, description, body string) content.Item {
	return content.Item{
		Type:       models.ContentTypeAsset,
		ID:         id,
		CampaignID: campaignID,
		Text:       content.ComposeAssetText(title, description, body),
	}
}

// recordingMetrics implements observability.EmbeddingMetrics and CacheMetrics.
type recordingMetrics struct {
	mu            sync.Mutex
	queued        map[string]int64
	claimed       int64
	outcomes      map[string]int
	workerErrors  []string
	triggerErrors []string
	lookups       map[string]int
	queryLatency  int
	depth         [3]int64
}

func (m *recordingMetrics) RecordChunksQueued(_ context.Context, source string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queued == nil {
		m.queued = make(map[string]int64)
	}

	m.queued[source] += count
}

func (m *recordingMetrics) RecordItemsClaimed(_ context.Context, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.claimed += count
}

func (m *recordingMetrics) RecordEmbeddingOutcome(_ context.Context, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.outcomes == nil {
		m.outcomes = make(map[string]int)
	}

	m.outcomes[status]++
}

func (m *recordingMetrics) RecordEmbeddingDuration(context.Context, time.Duration, string) {}

func (m *recordingMetrics) RecordWorkerError(_ context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workerErrors = append(m.workerErrors, reason)
}

func (m *recordingMetrics) RecordTriggerError(_ context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.triggerErrors = append(m.triggerErrors, reason)
}

func (m *recordingMetrics) SetQueueDepth(pending, processing, failed int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.depth = [3]int64{pending, processing, failed}
}

func (m *recordingMetrics) RecordQueryCacheLookup(_ context.Context, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lookups == nil {
		m.lookups = make(map[string]int)
	}

	m.lookups[outcome]++
}

func (m *recordingMetrics) RecordQueryEmbeddingDuration(context.Context, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queryLatency++
}

var errProvider = errors.New("provider unavailable")
