package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"path"
	"strings"

	"vidflow/internal/models"
)

// MockGateway produces deterministic output for tests and local runs without
// any hosted models. Vectors are a pure function of the input string, so the
// same video always embeds to the same point.
type MockGateway struct {
	dim int
}

func NewMockGateway(dim int) *MockGateway {
	if dim <= 0 {
		dim = 1024
	}
	return &MockGateway{dim: dim}
}

func (m *MockGateway) Understand(ctx context.Context, ref models.StorageRef, transcript string) (UnderstandResult, CallInfo, error) {
	_ = ctx
	title := strings.TrimSuffix(path.Base(ref.Key), path.Ext(ref.Key))
	res := UnderstandResult{
		Summary:          fmt.Sprintf("Deterministic summary for %s.", title),
		Topics:           []string{"general"},
		Hashtags:         []string{"#" + strings.ToLower(strings.ReplaceAll(title, " ", ""))},
		Sentiment:        "neutral",
		ContentAnalytics: "mock",
		Chapters: []models.Chapter{
			{Start: 0, End: 30, Title: "Opening", Summary: "Opening chapter."},
			{Start: 30, End: 60, Title: "Closing", Summary: "Closing chapter."},
		},
	}
	if transcript != "" {
		res.Segments = []models.TranscriptSegment{{StartTime: 0, EndTime: 60, Text: transcript}}
	}
	return res, CallInfo{Capability: "understand", Model: "mock-understand-v1", Region: "primary"}, nil
}

func (m *MockGateway) EmbedVideo(ctx context.Context, ref models.StorageRef) ([]float32, CallInfo, error) {
	_ = ctx
	return deterministicVector("video:"+ref.String(), m.dim),
		CallInfo{Capability: "embed_video", Model: fmt.Sprintf("mock-embed-%d", m.dim), Region: "secondary"}, nil
}

func (m *MockGateway) EmbedText(ctx context.Context, text string) ([]float32, CallInfo, error) {
	_ = ctx
	return deterministicVector("text:"+text, m.dim),
		CallInfo{Capability: "embed_text", Model: fmt.Sprintf("mock-embed-%d", m.dim), Region: "secondary"}, nil
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sum+1e-9))
	for i := range v {
		v[i] *= inv
	}
	return v
}
