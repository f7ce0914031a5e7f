package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"vidflow/internal/config"
	"vidflow/internal/events"
	"vidflow/internal/workflows"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// The trigger bridges the upload topic to Temporal: one upload event, one
// ingestion workflow.
func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := config.NewLogger(cfg.Tunables.LogLevel)

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	consumer, err := events.NewUploadConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.UploadTopic, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tun := cfg.Tunables
	handler := func(ctx context.Context, evt events.UploadEvent) error {
		if evt.VideoID == "" || evt.StorageRef.Bucket == "" || evt.StorageRef.Key == "" {
			logger.Warn("dropping upload event with missing fields", "video_id", evt.VideoID)
			return nil
		}
		jobID := uuid.NewString()
		we, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:                                       "ingest-" + jobID,
			TaskQueue:                                cfg.TemporalTaskQueue,
			WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
			WorkflowExecutionErrorWhenAlreadyStarted: true,
		}, workflows.IngestWorkflow, workflows.IngestInput{
			JobID:      jobID,
			VideoID:    evt.VideoID,
			Title:      evt.Title,
			StorageRef: evt.StorageRef,
			Retry: workflows.RetrySettings{
				MaxAttempts:  tun.Retry.MaxAttempts,
				InitialDelay: tun.InitialDelay(),
				MaxDelay:     tun.MaxDelay(),
			},
			Timeouts: workflows.StageTimeouts{
				Extract: tun.ExtractTimeout(),
				Index:   tun.IndexTimeout(),
			},
		})
		if err != nil {
			return err
		}
		logger.Info("started ingestion", "job_id", jobID, "video_id", evt.VideoID, "workflow_id", we.GetID())
		return nil
	}

	logger.Info("vidflow trigger started", "topic", cfg.UploadTopic, "group", cfg.KafkaGroupID)
	if err := consumer.Run(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}
