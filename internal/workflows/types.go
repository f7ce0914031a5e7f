package workflows

import (
	"time"

	"vidflow/internal/models"
)

// RetrySettings governs the manual retry loop around each pipeline stage.
type RetrySettings struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

type StageTimeouts struct {
	Extract time.Duration
	Index   time.Duration
}

type IngestInput struct {
	JobID      string
	VideoID    string
	Title      string
	StorageRef models.StorageRef
	Retry      RetrySettings
	Timeouts   StageTimeouts
}

// JobStatus is the live view served by the GetJobStatus query.
type JobStatus struct {
	JobID         string          `json:"job_id"`
	VideoID       string          `json:"video_id"`
	Stage         models.JobStage `json:"stage"`
	AttemptCounts map[string]int  `json:"attempt_counts"`
	LastError     string          `json:"last_error,omitempty"`
}
