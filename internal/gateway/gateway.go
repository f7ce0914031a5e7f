package gateway

import (
	"context"

	"vidflow/internal/models"
)

// UnderstandResult is the structured insight record returned by the
// multimodal understanding capability.
type UnderstandResult struct {
	Summary          string                     `json:"summary"`
	Topics           []string                   `json:"topics"`
	Hashtags         []string                   `json:"hashtags"`
	Sentiment        string                     `json:"sentiment"`
	ContentAnalytics string                     `json:"content_analytics"`
	Chapters         []models.Chapter           `json:"chapters"`
	Segments         []models.TranscriptSegment `json:"segments"`
	Entities         models.Entities            `json:"entities"`
}

// CallInfo identifies which remote model served a call, for auditing.
type CallInfo struct {
	Capability string `json:"capability"`
	Model      string `json:"model"`
	Region     string `json:"region"`
}

// Gateway exposes the two remote model capabilities. Implementations handle
// region routing internally; callers never need region awareness.
type Gateway interface {
	// Understand analyzes the raw video (plus optional transcript text) and
	// returns the structured insight record.
	Understand(ctx context.Context, ref models.StorageRef, transcript string) (UnderstandResult, CallInfo, error)
	// EmbedVideo embeds the raw video signal.
	EmbedVideo(ctx context.Context, ref models.StorageRef) ([]float32, CallInfo, error)
	// EmbedText embeds arbitrary text (insight summaries, search queries).
	EmbedText(ctx context.Context, text string) ([]float32, CallInfo, error)
}
