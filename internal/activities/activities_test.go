package activities

import (
	"testing"

	"vidflow/internal/gateway"
	"vidflow/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestAssembleTranscriptJoinsSegments(t *testing.T) {
	tr := assembleTranscript([]models.TranscriptSegment{
		{StartTime: 0, EndTime: 5, Text: "hello"},
		{StartTime: 5, EndTime: 9, Text: "  "},
		{StartTime: 9, EndTime: 12, Text: "world"},
	})
	assert.Equal(t, "hello world", tr.FullText)
	assert.Len(t, tr.Segments, 3)
}

func TestBuildInsightsTextIsDeterministic(t *testing.T) {
	res := gateway.UnderstandResult{
		Summary: "A tutorial.",
		Topics:  []string{"go", "testing"},
		Entities: models.Entities{
			Companies: []string{"Acme"},
		},
	}
	full := "one two three four five"
	a := buildInsightsText(res, full, 10)
	b := buildInsightsText(res, full, 10)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "A tutorial.")
	assert.Contains(t, a, "Acme")
	assert.Contains(t, a, "one two th")
	assert.NotContains(t, a, "five")
}

func TestBuildInsightsTextSkipsEmptySections(t *testing.T) {
	out := buildInsightsText(gateway.UnderstandResult{}, "", 100)
	assert.Empty(t, out)
}
