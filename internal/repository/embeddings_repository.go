package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/questforge/embeddings/internal/models"
)

// ErrRecordNotClaimed is returned by MarkCompleted and MarkFailed when the row is no
// longer in the processing state (deleted by a retry or reset by a sync meanwhile).
var ErrRecordNotClaimed = errors.New("embedding record is not claimed for processing")

const recordColumns = `id, content_type, content_id, campaign_id, chunk_index, total_chunks,
	content_text, content_hash, status, error_message, last_processed_at, created_at, updated_at`

// upsertChunkSQL inserts a pending chunk or resets an existing one. Unchanged chunks
// (same hash and chunk count, not failed) are left alone unless $9 (force) is true.
const upsertChunkSQL = `
	INSERT INTO content_embeddings (
		id, content_type, content_id, campaign_id, chunk_index, total_chunks,
		content_text, content_hash, status, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', now(), now())
	ON CONFLICT (content_type, content_id, chunk_index) DO UPDATE SET
		campaign_id   = EXCLUDED.campaign_id,
		total_chunks  = EXCLUDED.total_chunks,
		content_text  = EXCLUDED.content_text,
		content_hash  = EXCLUDED.content_hash,
		status        = 'pending',
		embedding     = NULL,
		error_message = NULL,
		updated_at    = now()
	WHERE $9::boolean
		OR content_embeddings.content_hash IS DISTINCT FROM EXCLUDED.content_hash
		OR content_embeddings.total_chunks IS DISTINCT FROM EXCLUDED.total_chunks
		OR content_embeddings.status = 'failed'`

const insertChunkSQL = `
	INSERT INTO content_embeddings (
		id, content_type, content_id, campaign_id, chunk_index, total_chunks,
		content_text, content_hash, status, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', now(), now())`

// EmbeddingsRepository handles data access for the content_embeddings table.
type EmbeddingsRepository struct {
	db *pgxpool.Pool
}

// NewEmbeddingsRepository creates a new embeddings repository.
func NewEmbeddingsRepository(db *pgxpool.Pool) *EmbeddingsRepository {
	return &EmbeddingsRepository{db: db}
}

// UpsertContentChunks writes the chunks of one content item in a single transaction and
// removes rows left over from a previous, longer chunking. It returns how many chunk rows
// were inserted or reset to pending.
func (r *EmbeddingsRepository) UpsertContentChunks(
	ctx context.Context, key models.ContentKey, campaignID string, chunks []models.ChunkInput, force bool,
) (int, error) {
	queued := 0

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, c := range chunks {
			batch.Queue(upsertChunkSQL,
				uuid.Must(uuid.NewV7()), string(key.Type), key.ID, campaignID,
				c.Index, len(chunks), c.Text, c.Hash, force,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for range chunks {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()

				return fmt.Errorf("upsert chunk: %w", err)
			}

			queued += int(tag.RowsAffected())
		}

		if err := results.Close(); err != nil {
			return fmt.Errorf("close upsert batch: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM content_embeddings WHERE content_type = $1 AND content_id = $2 AND chunk_index >= $3`,
			string(key.Type), key.ID, len(chunks),
		); err != nil {
			return fmt.Errorf("delete stale chunks: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("embeddings upsert content %s: %w", key, err)
	}

	return queued, nil
}

// ReplaceContentChunks hard-deletes every row of the content item and inserts fresh pending
// rows for chunks, atomically. It returns the number of rows inserted.
func (r *EmbeddingsRepository) ReplaceContentChunks(
	ctx context.Context, key models.ContentKey, campaignID string, chunks []models.ChunkInput,
) (int, error) {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM content_embeddings WHERE content_type = $1 AND content_id = $2`,
			string(key.Type), key.ID,
		); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}

		batch := &pgx.Batch{}
		for _, c := range chunks {
			batch.Queue(insertChunkSQL,
				uuid.Must(uuid.NewV7()), string(key.Type), key.ID, campaignID,
				c.Index, len(chunks), c.Text, c.Hash,
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("embeddings replace content %s: %w", key, err)
	}

	return len(chunks), nil
}

// ClaimPending atomically moves up to limit rows to processing and returns them, oldest first.
// Rows stuck in processing for longer than claimTimeout are reclaimed. Concurrent callers
// never receive the same row.
func (r *EmbeddingsRepository) ClaimPending(
	ctx context.Context, limit int, claimTimeout time.Duration,
) ([]models.EmbeddingRecord, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE content_embeddings SET status = 'processing', last_processed_at = now(), updated_at = now()
		WHERE id IN (
			SELECT id FROM content_embeddings
			WHERE status = 'pending'
			   OR (status = 'processing' AND last_processed_at < now() - make_interval(secs => $2))
			ORDER BY updated_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+recordColumns,
		limit, claimTimeout.Seconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("embeddings claim pending: %w", err)
	}

	return collectRecords(rows, "claim pending")
}

// ClaimPendingForContent is ClaimPending restricted to the chunks of one content item.
func (r *EmbeddingsRepository) ClaimPendingForContent(
	ctx context.Context, key models.ContentKey, limit int,
) ([]models.EmbeddingRecord, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE content_embeddings SET status = 'processing', last_processed_at = now(), updated_at = now()
		WHERE id IN (
			SELECT id FROM content_embeddings
			WHERE content_type = $1 AND content_id = $2 AND status = 'pending'
			ORDER BY chunk_index
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+recordColumns,
		string(key.Type), key.ID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("embeddings claim pending for %s: %w", key, err)
	}

	return collectRecords(rows, "claim pending for content")
}

// MarkCompleted stores the embedding of a claimed row.
// Uses halfvec storage (2 bytes per dimension); pgvector-go converts float32 to float16 when encoding.
func (r *EmbeddingsRepository) MarkCompleted(ctx context.Context, id uuid.UUID, embedding []float32) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE content_embeddings
		SET status = 'completed', embedding = $2, error_message = NULL,
		    last_processed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'processing'`,
		id, pgvector.NewHalfVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("embeddings mark completed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrRecordNotClaimed
	}

	return nil
}

// MarkFailed records the failure message of a claimed row and clears any embedding.
func (r *EmbeddingsRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE content_embeddings
		SET status = 'failed', embedding = NULL, error_message = $2,
		    last_processed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'processing'`,
		id, message,
	)
	if err != nil {
		return fmt.Errorf("embeddings mark failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrRecordNotClaimed
	}

	return nil
}

// ListByContent returns every chunk row of one content item ordered by chunk index.
func (r *EmbeddingsRepository) ListByContent(ctx context.Context, key models.ContentKey) ([]models.EmbeddingRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+recordColumns+`
		FROM content_embeddings
		WHERE content_type = $1 AND content_id = $2
		ORDER BY chunk_index`,
		string(key.Type), key.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("embeddings list by content: %w", err)
	}

	return collectRecords(rows, "list by content")
}

// DeleteByContent removes every row of one content item and returns how many were deleted.
func (r *EmbeddingsRepository) DeleteByContent(ctx context.Context, key models.ContentKey) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM content_embeddings WHERE content_type = $1 AND content_id = $2`,
		string(key.Type), key.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("embeddings delete by content: %w", err)
	}

	return tag.RowsAffected(), nil
}

// CountByStatus returns the number of rows per status.
func (r *EmbeddingsRepository) CountByStatus(ctx context.Context) (models.StatusCounts, error) {
	var counts models.StatusCounts

	rows, err := r.db.Query(ctx, `SELECT status, count(*) FROM content_embeddings GROUP BY status`)
	if err != nil {
		return counts, fmt.Errorf("embeddings count by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int64
		)

		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("scan status count: %w", err)
		}

		counts.Add(models.EmbeddingStatus(status), n)
	}

	if err := rows.Err(); err != nil {
		return counts, fmt.Errorf("iterating status counts: %w", err)
	}

	return counts, nil
}

// ListRecentByStatus returns the most recently updated rows with the given status.
func (r *EmbeddingsRepository) ListRecentByStatus(
	ctx context.Context, status models.EmbeddingStatus, limit int,
) ([]models.EmbeddingRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+recordColumns+`
		FROM content_embeddings
		WHERE status = $1
		ORDER BY updated_at DESC
		LIMIT $2`,
		string(status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("embeddings list recent %s: %w", status, err)
	}

	return collectRecords(rows, "list recent")
}

// SearchSimilar returns completed chunks of one campaign ranked by cosine similarity to
// q.Embedding. Uses cosine distance (<=>); similarity = 1 - distance. Only rows with
// similarity >= q.MinScore are returned.
func (r *EmbeddingsRepository) SearchSimilar(ctx context.Context, q models.SimilarityQuery) ([]models.ScoredRecord, error) {
	var types []string
	if len(q.ContentTypes) > 0 {
		types = make([]string, 0, len(q.ContentTypes))
		for _, ct := range q.ContentTypes {
			types = append(types, string(ct))
		}
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, content_type, content_id, campaign_id, chunk_index, content_text,
		       (1 - (embedding <=> $1)) AS similarity
		FROM content_embeddings
		WHERE status = 'completed'
		  AND campaign_id = $2
		  AND ($3::text[] IS NULL OR content_type = ANY($3))
		  AND (1 - (embedding <=> $1)) >= $4
		ORDER BY embedding <=> $1
		LIMIT $5`,
		pgvector.NewHalfVector(q.Embedding), q.CampaignID, types, q.MinScore, q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("embeddings search similar: %w", err)
	}
	defer rows.Close()

	var results []models.ScoredRecord

	for rows.Next() {
		var (
			row         models.ScoredRecord
			contentType string
		)

		if err := rows.Scan(&row.ID, &contentType, &row.ContentID, &row.CampaignID,
			&row.ChunkIndex, &row.ContentText, &row.Similarity); err != nil {
			return nil, fmt.Errorf("scan scored record: %w", err)
		}

		row.ContentType = models.ContentType(contentType)
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	return results, nil
}

func collectRecords(rows pgx.Rows, op string) ([]models.EmbeddingRecord, error) {
	defer rows.Close()

	var records []models.EmbeddingRecord

	for rows.Next() {
		var (
			rec         models.EmbeddingRecord
			contentType string
			status      string
		)

		if err := rows.Scan(
			&rec.ID, &contentType, &rec.ContentID, &rec.CampaignID, &rec.ChunkIndex, &rec.TotalChunks,
			&rec.ContentText, &rec.ContentHash, &status, &rec.ErrorMessage, &rec.LastProcessedAt,
			&rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan embedding record (%s): %w", op, err)
		}

		rec.ContentType = models.ContentType(contentType)
		rec.Status = models.EmbeddingStatus(status)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embedding records (%s): %w", op, err)
	}

	return records, nil
}
