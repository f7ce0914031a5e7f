package models

import "time"

// JobStage is the ingestion state machine position.
type JobStage string

const (
	StageInitiated          JobStage = "initiated"
	StageExtractingInsights JobStage = "extracting_insights"
	StageIndexing           JobStage = "indexing"
	StageCompleted          JobStage = "completed"
	StageFailed             JobStage = "failed"
)

func (s JobStage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// ProcessingJob is one ingestion run for one video. Jobs are never
// resurrected: retrying a failed video creates a new job with a fresh job_id
// that references the same video_id.
type ProcessingJob struct {
	JobID         string         `json:"job_id"`
	VideoID       string         `json:"video_id"`
	Title         string         `json:"title,omitempty"`
	StorageRef    StorageRef     `json:"storage_ref"`
	Stage         JobStage       `json:"stage"`
	AttemptCounts map[string]int `json:"attempt_counts"`
	LastError     string         `json:"last_error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// SearchHit is one ranked result from any search mode.
type SearchHit struct {
	VideoID             string     `json:"video_id"`
	Title               string     `json:"title"`
	Summary             string     `json:"summary,omitempty"`
	ThumbnailRef        string     `json:"thumbnail_ref,omitempty"`
	StorageRef          StorageRef `json:"storage_ref"`
	ProcessingTimestamp time.Time  `json:"processing_timestamp"`
	Score               float64    `json:"score"`
}
