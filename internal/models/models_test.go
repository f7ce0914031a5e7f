package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validDoc() VideoDocument {
	return VideoDocument{
		VideoID:             "v1",
		Title:               "Python Tutorial",
		StorageRef:          StorageRef{Bucket: "videos", Key: "v1.mp4"},
		ProcessingTimestamp: time.Now(),
		Insights: Insights{
			Summary: "An introduction to Python.",
			Chapters: []Chapter{
				{Start: 0, End: 30, Title: "Intro"},
				{Start: 30, End: 90, Title: "Basics"},
			},
			Transcript: Transcript{
				FullText: "hello world",
				Segments: []TranscriptSegment{
					{StartTime: 0, EndTime: 5, Text: "hello"},
					{StartTime: 5, EndTime: 10, Text: "world"},
				},
			},
		},
		ContentEmbedding:  []float32{0.1, 0.2},
		InsightsEmbedding: []float32{0.3, 0.4},
	}
}

func TestValidateAcceptsWellFormedDocument(t *testing.T) {
	d := validDoc()
	require.NoError(t, d.Validate(2))
}

func TestValidateRejectsMissingEmbeddings(t *testing.T) {
	d := validDoc()
	d.InsightsEmbedding = nil
	require.Error(t, d.Validate(2))

	d = validDoc()
	d.ContentEmbedding = nil
	require.Error(t, d.Validate(2))
}

func TestValidateRejectsWrongDimension(t *testing.T) {
	d := validDoc()
	require.Error(t, d.Validate(1024))
}

func TestValidateRejectsBadChapters(t *testing.T) {
	d := validDoc()
	d.Insights.Chapters = []Chapter{{Start: 10, End: 10}}
	require.Error(t, d.Validate(2))

	d = validDoc()
	d.Insights.Chapters = []Chapter{
		{Start: 0, End: 40},
		{Start: 30, End: 90}, // overlaps
	}
	require.Error(t, d.Validate(2))
}

func TestValidateRejectsUnorderedSegments(t *testing.T) {
	d := validDoc()
	d.Insights.Transcript.Segments = []TranscriptSegment{
		{StartTime: 5, EndTime: 10},
		{StartTime: 0, EndTime: 4},
	}
	require.Error(t, d.Validate(2))
}

func TestNormalizeDedupesEntities(t *testing.T) {
	d := validDoc()
	d.Entities = Entities{
		Brands:      []string{"Acme", "acme", " Acme ", "Globex"},
		PersonNames: []string{"Ada Lovelace", "ada lovelace"},
	}
	d.Normalize()
	require.Len(t, d.Entities.Brands, 2)
	require.Len(t, d.Entities.PersonNames, 1)
}

func TestNormalizeOrdersChaptersAndSegments(t *testing.T) {
	d := validDoc()
	d.Insights.Chapters = []Chapter{
		{Start: 30, End: 90, Title: "Basics"},
		{Start: 0, End: 30, Title: "Intro"},
	}
	d.Normalize()
	require.Equal(t, "Intro", d.Insights.Chapters[0].Title)
	require.NoError(t, d.Validate(2))
}

func TestStageTerminal(t *testing.T) {
	require.True(t, StageCompleted.Terminal())
	require.True(t, StageFailed.Terminal())
	require.False(t, StageExtractingInsights.Terminal())
}
