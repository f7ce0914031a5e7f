package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"vidflow/internal/models"
	"vidflow/internal/util"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type VideoRepo struct {
	db *DB
}

func NewVideoRepo(db *DB) *VideoRepo {
	return &VideoRepo{db: db}
}

// UpsertDocument writes a fully-assembled document in one statement, so a
// video is either completely indexed or absent. Concurrent jobs for the same
// video resolve by processing timestamp: a stale write is silently dropped.
// A serialization or deadlock failure is retried once before surfacing as
// util.ErrWriteConflict.
func (r *VideoRepo) UpsertDocument(ctx context.Context, doc models.VideoDocument) error {
	err := r.upsertOnce(ctx, doc)
	if errors.Is(err, util.ErrWriteConflict) {
		err = r.upsertOnce(ctx, doc)
	}
	return err
}

func (r *VideoRepo) upsertOnce(ctx context.Context, doc models.VideoDocument) error {
	insightsJSON, err := json.Marshal(doc.Insights)
	if err != nil {
		return fmt.Errorf("marshal insights: %w", err)
	}
	entitiesJSON, err := json.Marshal(doc.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO videos (video_id, title, thumbnail_ref, storage_bucket, storage_key,
                    processing_timestamp, summary, transcript, entity_text,
                    insights, entities, content_embedding, insights_embedding, published)
VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, $7, $8, $9, $10, $11, $12::vector, $13::vector, TRUE)
ON CONFLICT (video_id)
DO UPDATE SET
  title = EXCLUDED.title,
  thumbnail_ref = EXCLUDED.thumbnail_ref,
  storage_bucket = EXCLUDED.storage_bucket,
  storage_key = EXCLUDED.storage_key,
  processing_timestamp = EXCLUDED.processing_timestamp,
  summary = EXCLUDED.summary,
  transcript = EXCLUDED.transcript,
  entity_text = EXCLUDED.entity_text,
  insights = EXCLUDED.insights,
  entities = EXCLUDED.entities,
  content_embedding = EXCLUDED.content_embedding,
  insights_embedding = EXCLUDED.insights_embedding,
  published = TRUE,
  updated_at = NOW()
WHERE EXCLUDED.processing_timestamp >= videos.processing_timestamp`,
		doc.VideoID, doc.Title, doc.ThumbnailRef, doc.StorageRef.Bucket, doc.StorageRef.Key,
		doc.ProcessingTimestamp, doc.Insights.Summary, util.SanitizeText(doc.Insights.Transcript.FullText),
		doc.EntityText(), insightsJSON, entitiesJSON,
		VectorLiteral(doc.ContentEmbedding), VectorLiteral(doc.InsightsEmbedding),
	)
	if err != nil {
		if isWriteConflict(err) {
			return fmt.Errorf("upsert video %s: %w", doc.VideoID, util.ErrWriteConflict)
		}
		return fmt.Errorf("upsert video %s: %w", doc.VideoID, err)
	}
	return nil
}

func isWriteConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure and deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// GetDocument loads a published document including both embedding vectors.
func (r *VideoRepo) GetDocument(ctx context.Context, videoID string) (models.VideoDocument, error) {
	var (
		doc          models.VideoDocument
		insightsJSON []byte
		entitiesJSON []byte
		contentVec   string
		insightsVec  string
	)
	err := r.db.Pool.QueryRow(ctx, `
SELECT video_id, title, COALESCE(thumbnail_ref,''), storage_bucket, storage_key,
       processing_timestamp, insights, entities,
       content_embedding::text, insights_embedding::text
FROM videos
WHERE video_id = $1 AND published`, videoID).
		Scan(&doc.VideoID, &doc.Title, &doc.ThumbnailRef, &doc.StorageRef.Bucket, &doc.StorageRef.Key,
			&doc.ProcessingTimestamp, &insightsJSON, &entitiesJSON, &contentVec, &insightsVec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.VideoDocument{}, fmt.Errorf("video %s: %w", videoID, util.ErrNotFound)
		}
		return models.VideoDocument{}, fmt.Errorf("get video %s: %w", videoID, err)
	}
	if err := json.Unmarshal(insightsJSON, &doc.Insights); err != nil {
		return models.VideoDocument{}, fmt.Errorf("decode insights for %s: %w", videoID, err)
	}
	if err := json.Unmarshal(entitiesJSON, &doc.Entities); err != nil {
		return models.VideoDocument{}, fmt.Errorf("decode entities for %s: %w", videoID, err)
	}
	if doc.ContentEmbedding, err = parseVector(contentVec); err != nil {
		return models.VideoDocument{}, fmt.Errorf("decode content embedding for %s: %w", videoID, err)
	}
	if doc.InsightsEmbedding, err = parseVector(insightsVec); err != nil {
		return models.VideoDocument{}, fmt.Errorf("decode insights embedding for %s: %w", videoID, err)
	}
	return doc, nil
}

// Exists reports whether a published document for the video is in the index.
func (r *VideoRepo) Exists(ctx context.Context, videoID string) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM videos WHERE video_id = $1 AND published)`, videoID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check video %s: %w", videoID, err)
	}
	return ok, nil
}
