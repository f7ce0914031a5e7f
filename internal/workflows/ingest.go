package workflows

import (
	"fmt"
	"math/rand"
	"time"

	"vidflow/internal/activities"
	"vidflow/internal/events"
	"vidflow/internal/gateway"
	"vidflow/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetJobStatus = "GetJobStatus"

// Pipeline stage names, used as attempt-count keys.
const (
	StageExtract = "extract_insights"
	StageIndex   = "index"
)

// IngestWorkflow drives one video from upload notification to a published,
// searchable document. Stage retries live here rather than in Temporal retry
// policies so attempt counts stay queryable and terminal bookkeeping always
// runs, cancellation included.
func IngestWorkflow(ctx workflow.Context, input IngestInput) (string, error) {
	applyDefaults(&input)

	status := JobStatus{
		JobID:         input.JobID,
		VideoID:       input.VideoID,
		Stage:         models.StageInitiated,
		AttemptCounts: map[string]int{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetJobStatus, func() (JobStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	if err := workflow.ExecuteActivity(ctx, "CreateJobActivity", activities.CreateJobInput{
		Job: models.ProcessingJob{
			JobID:         input.JobID,
			VideoID:       input.VideoID,
			Title:         input.Title,
			StorageRef:    input.StorageRef,
			Stage:         models.StageInitiated,
			AttemptCounts: map[string]int{},
		},
	}).Get(ctx, nil); err != nil {
		return "", err
	}

	setStage := func(c workflow.Context, stage models.JobStage, lastError string) {
		status.Stage = stage
		status.LastError = lastError
		_ = workflow.ExecuteActivity(c, "UpdateJobActivity", activities.UpdateJobInput{
			JobID:         input.JobID,
			Stage:         stage,
			AttemptCounts: status.AttemptCounts,
			LastError:     lastError,
		}).Get(c, nil)
	}

	fail := func(cause error) (string, error) {
		// Bookkeeping must survive cancellation of the workflow context.
		c := ctx
		if ctx.Err() != nil {
			var cancel workflow.CancelFunc
			c, cancel = workflow.NewDisconnectedContext(ctx)
			defer cancel()
			c = workflow.WithActivityOptions(c, ao)
		}
		setStage(c, models.StageFailed, cause.Error())
		_ = workflow.ExecuteActivity(c, "PublishNotificationActivity", activities.PublishNotificationInput{
			Notification: events.Notification{
				JobID:         input.JobID,
				VideoID:       input.VideoID,
				Status:        "failed",
				StorageRef:    input.StorageRef,
				Error:         cause.Error(),
				AttemptCounts: status.AttemptCounts,
				Timestamp:     workflow.Now(c).UTC(),
			},
		}).Get(c, nil)
		return "failed", nil
	}

	// Extraction stage.
	setStage(ctx, models.StageExtractingInsights, "")
	extractCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: input.Timeouts.Extract,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var extracted activities.ExtractInsightsOutput
	err := runStage(ctx, StageExtract, &status, input.Retry, func() error {
		return workflow.ExecuteActivity(extractCtx, "ExtractInsightsActivity", activities.ExtractInsightsInput{
			JobID:      input.JobID,
			VideoID:    input.VideoID,
			Title:      input.Title,
			StorageRef: input.StorageRef,
		}).Get(extractCtx, &extracted)
	})
	if err != nil {
		return fail(err)
	}

	// Indexing stage.
	setStage(ctx, models.StageIndexing, "")
	indexCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: input.Timeouts.Index,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	err = runStage(ctx, StageIndex, &status, input.Retry, func() error {
		return workflow.ExecuteActivity(indexCtx, "IndexDocumentActivity", activities.IndexDocumentInput{
			Document: extracted.Document,
		}).Get(indexCtx, nil)
	})
	if err != nil {
		return fail(err)
	}

	setStage(ctx, models.StageCompleted, "")
	_ = workflow.ExecuteActivity(ctx, "PublishNotificationActivity", activities.PublishNotificationInput{
		Notification: events.Notification{
			JobID:      input.JobID,
			VideoID:    input.VideoID,
			Status:     "completed",
			StorageRef: input.StorageRef,
			Timestamp:  workflow.Now(ctx).UTC(),
		},
	}).Get(ctx, nil)

	return "completed", nil
}

// runStage executes one pipeline stage with classify-and-backoff retries.
// Permanent rejections and write conflicts fail immediately; everything else
// retries with capped exponential backoff until the attempt budget runs out.
func runStage(ctx workflow.Context, name string, status *JobStatus, rs RetrySettings, exec func() error) error {
	for {
		status.AttemptCounts[name]++
		err := exec()
		if err == nil {
			return nil
		}
		status.LastError = err.Error()
		if ctx.Err() != nil || temporal.IsCanceledError(err) {
			return fmt.Errorf("stage %s canceled: %w", name, err)
		}
		switch gateway.ClassifyError(err) {
		case gateway.ClassPermanent:
			return fmt.Errorf("stage %s rejected permanently: %w", name, err)
		case gateway.ClassConflict:
			// The store already retried the conflicting write once.
			return fmt.Errorf("stage %s lost a write conflict: %w", name, err)
		}
		if status.AttemptCounts[name] >= rs.MaxAttempts {
			return fmt.Errorf("stage %s failed after %d attempts: %w", name, status.AttemptCounts[name], err)
		}
		sleepBackoff(ctx, status.AttemptCounts[name], rs)
	}
}

// sleepBackoff waits InitialDelay*2^(attempt-1) capped at MaxDelay, scaled by
// a recorded jitter factor in [0.5, 1.0] so replays sleep identically.
func sleepBackoff(ctx workflow.Context, attempt int, rs RetrySettings) {
	delay := rs.InitialDelay
	for i := 1; i < attempt && delay < rs.MaxDelay; i++ {
		delay *= 2
	}
	if delay > rs.MaxDelay {
		delay = rs.MaxDelay
	}
	var factor float64
	workflow.SideEffect(ctx, func(workflow.Context) interface{} {
		return 0.5 + rand.Float64()*0.5
	}).Get(&factor)
	_ = workflow.Sleep(ctx, time.Duration(float64(delay)*factor))
}

func applyDefaults(in *IngestInput) {
	if in.Retry.MaxAttempts <= 0 {
		in.Retry.MaxAttempts = 3
	}
	if in.Retry.InitialDelay <= 0 {
		in.Retry.InitialDelay = 2 * time.Second
	}
	if in.Retry.MaxDelay <= 0 {
		in.Retry.MaxDelay = time.Minute
	}
	if in.Timeouts.Extract <= 0 {
		in.Timeouts.Extract = 35 * time.Minute
	}
	if in.Timeouts.Index <= 0 {
		in.Timeouts.Index = 2 * time.Minute
	}
}
