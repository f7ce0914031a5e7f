package activities

import (
	"time"

	"vidflow/internal/events"
	"vidflow/internal/models"
)

type CreateJobInput struct {
	Job models.ProcessingJob
}

type UpdateJobInput struct {
	JobID         string
	Stage         models.JobStage
	AttemptCounts map[string]int
	LastError     string
}

type ExtractInsightsInput struct {
	JobID      string
	VideoID    string
	Title      string
	StorageRef models.StorageRef
}

type ExtractInsightsOutput struct {
	Document models.VideoDocument
}

type IndexDocumentInput struct {
	Document models.VideoDocument
}

type IndexDocumentOutput struct {
	IndexedAt time.Time
}

type PublishNotificationInput struct {
	Notification events.Notification
}
