package events

import (
	"time"

	"vidflow/internal/models"
)

type EventType string

const (
	// VideoUploaded arrives on the upload topic and triggers ingestion.
	VideoUploaded EventType = "video.uploaded"

	// VideoIndexed and VideoFailed go out on the notification topic when a
	// job reaches a terminal stage.
	VideoIndexed EventType = "video.indexed"
	VideoFailed  EventType = "video.failed"
)

// Message headers carry the event type so consumers can route without
// decoding the payload.
const TypeHeader = "event-type"

// UploadEvent announces a new video object in bucket storage.
type UploadEvent struct {
	VideoID    string            `json:"video_id"`
	Title      string            `json:"title,omitempty"`
	StorageRef models.StorageRef `json:"storage_ref"`
	UploadedAt time.Time         `json:"uploaded_at,omitempty"`
}

// Notification reports a terminal ingestion outcome. Error and AttemptCounts
// are only set on failure.
type Notification struct {
	JobID         string            `json:"job_id"`
	VideoID       string            `json:"video_id"`
	Status        string            `json:"status"`
	StorageRef    models.StorageRef `json:"storage_ref"`
	Error         string            `json:"error,omitempty"`
	AttemptCounts map[string]int    `json:"attempt_counts,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}
