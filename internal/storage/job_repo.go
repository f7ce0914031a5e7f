package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"vidflow/internal/models"
	"vidflow/internal/util"

	"github.com/jackc/pgx/v5"
)

type JobRepo struct {
	db *DB
}

func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

func (r *JobRepo) InsertJob(ctx context.Context, job models.ProcessingJob) error {
	attempts, err := json.Marshal(job.AttemptCounts)
	if err != nil {
		return fmt.Errorf("marshal attempt counts: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO processing_jobs (job_id, video_id, title, storage_bucket, storage_key, stage, attempt_counts, last_error)
VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, $7, NULLIF($8,''))`,
		job.JobID, job.VideoID, job.Title, job.StorageRef.Bucket, job.StorageRef.Key, job.Stage, attempts, job.LastError)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.JobID, err)
	}
	return nil
}

func (r *JobRepo) UpdateJob(ctx context.Context, jobID string, stage models.JobStage, attemptCounts map[string]int, lastError string) error {
	attempts, err := json.Marshal(attemptCounts)
	if err != nil {
		return fmt.Errorf("marshal attempt counts: %w", err)
	}
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE processing_jobs
SET stage = $2, attempt_counts = $3, last_error = NULLIF($4,''), updated_at = NOW()
WHERE job_id = $1`, jobID, stage, attempts, lastError)
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, util.ErrNotFound)
	}
	return nil
}

func (r *JobRepo) GetJob(ctx context.Context, jobID string) (models.ProcessingJob, error) {
	var (
		job      models.ProcessingJob
		attempts []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
SELECT job_id, video_id, COALESCE(title,''), storage_bucket, storage_key, stage, attempt_counts, COALESCE(last_error,''), created_at, updated_at
FROM processing_jobs
WHERE job_id = $1`, jobID).
		Scan(&job.JobID, &job.VideoID, &job.Title, &job.StorageRef.Bucket, &job.StorageRef.Key,
			&job.Stage, &attempts, &job.LastError, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ProcessingJob{}, fmt.Errorf("job %s: %w", jobID, util.ErrNotFound)
		}
		return models.ProcessingJob{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if err := json.Unmarshal(attempts, &job.AttemptCounts); err != nil {
		return models.ProcessingJob{}, fmt.Errorf("decode attempt counts for %s: %w", jobID, err)
	}
	return job, nil
}

// ListJobsByVideo returns every ingestion run for a video, newest first.
func (r *JobRepo) ListJobsByVideo(ctx context.Context, videoID string) ([]models.ProcessingJob, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT job_id, video_id, COALESCE(title,''), storage_bucket, storage_key, stage, attempt_counts, COALESCE(last_error,''), created_at, updated_at
FROM processing_jobs
WHERE video_id = $1
ORDER BY created_at DESC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list jobs for video %s: %w", videoID, err)
	}
	defer rows.Close()

	out := make([]models.ProcessingJob, 0)
	for rows.Next() {
		var (
			job      models.ProcessingJob
			attempts []byte
		)
		if err := rows.Scan(&job.JobID, &job.VideoID, &job.Title, &job.StorageRef.Bucket, &job.StorageRef.Key,
			&job.Stage, &attempts, &job.LastError, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		if err := json.Unmarshal(attempts, &job.AttemptCounts); err != nil {
			return nil, fmt.Errorf("decode attempt counts: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}
