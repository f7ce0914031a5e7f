package activities

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"vidflow/internal/config"
	"vidflow/internal/events"
	"vidflow/internal/gateway"
	"vidflow/internal/models"
	"vidflow/internal/storage"
	"vidflow/internal/util"

	"go.temporal.io/sdk/activity"
)

type Activities struct {
	cfg        config.Config
	jobs       *storage.JobRepo
	videos     *storage.VideoRepo
	modelCalls *storage.ModelCallRepo
	gw         gateway.Gateway
	notifier   events.Notifier
}

func New(cfg config.Config, db *storage.DB, notifier events.Notifier) *Activities {
	var gw gateway.Gateway
	if cfg.GatewayMode == "remote" {
		gw = gateway.NewRemoteGateway(cfg.GatewayEndpoint, cfg.GatewayEmbedEndpoint, cfg.GatewayAPIKey)
	} else {
		gw = gateway.NewMockGateway(cfg.Tunables.EmbedDim)
	}
	return &Activities{
		cfg:        cfg,
		jobs:       storage.NewJobRepo(db),
		videos:     storage.NewVideoRepo(db),
		modelCalls: storage.NewModelCallRepo(db),
		gw:         gw,
		notifier:   notifier,
	}
}

func (a *Activities) CreateJobActivity(ctx context.Context, in CreateJobInput) error {
	return a.jobs.InsertJob(ctx, in.Job)
}

func (a *Activities) UpdateJobActivity(ctx context.Context, in UpdateJobInput) error {
	return a.jobs.UpdateJob(ctx, in.JobID, in.Stage, in.AttemptCounts, in.LastError)
}

// ExtractInsightsActivity runs the whole model pass for one video: the
// understanding call, then both embeddings concurrently. Every gateway call
// lands in the audit table; audit failures are logged and swallowed.
func (a *Activities) ExtractInsightsActivity(ctx context.Context, in ExtractInsightsInput) (ExtractInsightsOutput, error) {
	res, info, err := a.gw.Understand(ctx, in.StorageRef, "")
	a.recordCall(ctx, in, info, err)
	if err != nil {
		return ExtractInsightsOutput{}, fmt.Errorf("understand %s: %w", in.VideoID, err)
	}

	transcript := assembleTranscript(res.Segments)
	insightsText := buildInsightsText(res, transcript.FullText, a.cfg.Tunables.TranscriptMaxChars)

	var (
		contentVec, insightsVec   []float32
		contentInfo, insightsInfo gateway.CallInfo
		contentErr, insightsErr   error
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		contentVec, contentInfo, contentErr = a.gw.EmbedVideo(ctx, in.StorageRef)
	}()
	go func() {
		defer wg.Done()
		insightsVec, insightsInfo, insightsErr = a.gw.EmbedText(ctx, insightsText)
	}()
	wg.Wait()

	a.recordCall(ctx, in, contentInfo, contentErr)
	a.recordCall(ctx, in, insightsInfo, insightsErr)
	if contentErr != nil {
		return ExtractInsightsOutput{}, fmt.Errorf("embed video %s: %w", in.VideoID, contentErr)
	}
	if insightsErr != nil {
		return ExtractInsightsOutput{}, fmt.Errorf("embed insights for %s: %w", in.VideoID, insightsErr)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = path.Base(in.StorageRef.Key)
	}
	doc := models.VideoDocument{
		VideoID:             in.VideoID,
		Title:               title,
		StorageRef:          in.StorageRef,
		ProcessingTimestamp: time.Now().UTC(),
		Insights: models.Insights{
			Summary:          res.Summary,
			Topics:           res.Topics,
			Hashtags:         res.Hashtags,
			Sentiment:        res.Sentiment,
			ContentAnalytics: res.ContentAnalytics,
			Chapters:         res.Chapters,
			Transcript:       transcript,
		},
		Entities:          res.Entities,
		ContentEmbedding:  contentVec,
		InsightsEmbedding: insightsVec,
	}
	doc.Normalize()
	return ExtractInsightsOutput{Document: doc}, nil
}

// IndexDocumentActivity validates and publishes the document in one atomic
// write. A document that fails validation never touches the index.
func (a *Activities) IndexDocumentActivity(ctx context.Context, in IndexDocumentInput) (IndexDocumentOutput, error) {
	doc := in.Document
	doc.Normalize()
	if err := doc.Validate(a.cfg.Tunables.EmbedDim); err != nil {
		return IndexDocumentOutput{}, fmt.Errorf("%v: %w", err, util.ErrValidation)
	}
	if err := a.videos.UpsertDocument(ctx, doc); err != nil {
		return IndexDocumentOutput{}, err
	}
	return IndexDocumentOutput{IndexedAt: time.Now().UTC()}, nil
}

func (a *Activities) PublishNotificationActivity(ctx context.Context, in PublishNotificationInput) error {
	return a.notifier.Notify(ctx, in.Notification)
}

func (a *Activities) recordCall(ctx context.Context, in ExtractInsightsInput, info gateway.CallInfo, callErr error) {
	if info.Capability == "" {
		return
	}
	rec := storage.ModelCallRecord{
		JobID:      in.JobID,
		VideoID:    in.VideoID,
		Capability: info.Capability,
		Model:      info.Model,
		Region:     info.Region,
		Status:     "ok",
	}
	if callErr != nil {
		rec.Status = "failed"
		rec.ErrorClass = string(gateway.ClassifyError(callErr))
	}
	if err := a.modelCalls.Insert(ctx, rec); err != nil {
		activity.GetLogger(ctx).Warn("record model call", "capability", info.Capability, "error", err)
	}
}

func assembleTranscript(segs []models.TranscriptSegment) models.Transcript {
	texts := make([]string, 0, len(segs))
	for _, s := range segs {
		if t := strings.TrimSpace(s.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return models.Transcript{FullText: strings.Join(texts, " "), Segments: segs}
}

// buildInsightsText is the canonical text fed to the insights embedding. The
// transcript is truncated to a fixed budget so reprocessing a video always
// embeds the same input.
func buildInsightsText(res gateway.UnderstandResult, fullText string, maxChars int) string {
	parts := make([]string, 0, 4)
	if res.Summary != "" {
		parts = append(parts, res.Summary)
	}
	if len(res.Topics) > 0 {
		parts = append(parts, strings.Join(res.Topics, " "))
	}
	entityParts := append(append(append([]string{}, res.Entities.Brands...), res.Entities.Companies...), res.Entities.PersonNames...)
	if len(entityParts) > 0 {
		parts = append(parts, strings.Join(entityParts, " "))
	}
	if fullText != "" {
		parts = append(parts, util.TruncateTranscript(fullText, maxChars))
	}
	return strings.Join(parts, "\n")
}
