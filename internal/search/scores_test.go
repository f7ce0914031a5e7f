package search

import (
	"testing"
	"time"

	"vidflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hit(id string, score float64, ts time.Time) models.SearchHit {
	return models.SearchHit{VideoID: id, Title: id, Score: score, ProcessingTimestamp: ts}
}

func TestNormalizeScoresRescalesToUnitRange(t *testing.T) {
	now := time.Now()
	out := normalizeScores([]models.SearchHit{
		hit("a", 0.2, now), hit("b", 0.6, now), hit("c", 1.0, now),
	})
	require.Len(t, out, 3)
	assert.InDelta(t, 0.0, out[0].Score, 1e-9)
	assert.InDelta(t, 0.5, out[1].Score, 1e-9)
	assert.InDelta(t, 1.0, out[2].Score, 1e-9)
}

func TestNormalizeScoresConstantList(t *testing.T) {
	now := time.Now()
	out := normalizeScores([]models.SearchHit{hit("a", 0.7, now), hit("b", 0.7, now)})
	for _, h := range out {
		assert.Equal(t, 1.0, h.Score)
	}
	out = normalizeScores([]models.SearchHit{hit("a", 0, now), hit("b", 0, now)})
	for _, h := range out {
		assert.Equal(t, 0.0, h.Score)
	}
}

func TestMergeWeightedPureSemanticMatchesSemanticOrder(t *testing.T) {
	now := time.Now()
	kw := []models.SearchHit{hit("a", 0.9, now), hit("b", 0.1, now)}
	sem := []models.SearchHit{hit("b", 0.8, now), hit("a", 0.3, now)}

	out := mergeWeighted(kw, sem, 1.0)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].VideoID)
	assert.Equal(t, "a", out[1].VideoID)
}

func TestMergeWeightedPureKeywordMatchesKeywordOrder(t *testing.T) {
	now := time.Now()
	kw := []models.SearchHit{hit("a", 0.9, now), hit("b", 0.1, now)}
	sem := []models.SearchHit{hit("b", 0.8, now), hit("a", 0.3, now)}

	out := mergeWeighted(kw, sem, 0.0)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].VideoID)
	assert.Equal(t, "b", out[1].VideoID)
}

func TestMergeWeightedPureSemanticKeepsWholeList(t *testing.T) {
	now := time.Now()
	// The lowest-ranked hit normalizes to 0 but is still a real match, so
	// weight 1 must return the full semantic list in semantic order.
	sem := []models.SearchHit{hit("a", 0.9, now), hit("b", 0.5, now)}

	out := mergeWeighted(nil, sem, 1.0)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].VideoID)
	assert.Equal(t, "b", out[1].VideoID)
}

func TestMergeWeightedKeepsSingleComponentMatches(t *testing.T) {
	now := time.Now()
	// "c" matched keywords only; it contributes 0 for the missing semantic
	// component instead of being excluded.
	kw := []models.SearchHit{hit("a", 2.0, now), hit("c", 1.0, now)}
	sem := []models.SearchHit{hit("a", 0.9, now)}

	out := mergeWeighted(kw, sem, 0.5)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].VideoID)
	assert.Equal(t, "c", out[1].VideoID)
	assert.Equal(t, 0.0, out[1].Score)
}

func TestMergeWeightedDropsBothZeroDocuments(t *testing.T) {
	now := time.Now()
	// "c" normalizes to zero on both sides, so it must not survive the merge.
	kw := []models.SearchHit{hit("a", 0.9, now), hit("c", 0.0, now)}
	sem := []models.SearchHit{hit("b", 0.8, now), hit("c", 0.0, now)}

	out := mergeWeighted(kw, sem, 0.5)
	for _, h := range out {
		assert.NotEqual(t, "c", h.VideoID)
	}
	assert.Len(t, out, 2)
}

func TestMergeWeightedCombinesScores(t *testing.T) {
	now := time.Now()
	kw := []models.SearchHit{hit("a", 1.0, now), hit("b", 0.0, now)}
	sem := []models.SearchHit{hit("b", 1.0, now), hit("a", 0.0, now)}

	out := mergeWeighted(kw, sem, 0.7)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].VideoID)
	assert.InDelta(t, 0.7, out[0].Score, 1e-9)
	assert.Equal(t, "a", out[1].VideoID)
	assert.InDelta(t, 0.3, out[1].Score, 1e-9)
}

func TestSortHitsTiebreaks(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	hits := []models.SearchHit{
		hit("b", 0.5, older),
		hit("a", 0.5, older),
		hit("c", 0.5, newer),
	}
	sortHits(hits)
	assert.Equal(t, "c", hits[0].VideoID)
	assert.Equal(t, "a", hits[1].VideoID)
	assert.Equal(t, "b", hits[2].VideoID)
}

func TestPaginatePagesAreDisjoint(t *testing.T) {
	now := time.Now()
	hits := make([]models.SearchHit, 0, 10)
	for i := 0; i < 10; i++ {
		hits = append(hits, hit(string(rune('a'+i)), float64(10-i), now))
	}
	page1 := paginate(hits, 0, 4)
	page2 := paginate(hits, 4, 4)
	page3 := paginate(hits, 8, 4)

	seen := make(map[string]bool)
	for _, page := range [][]models.SearchHit{page1, page2, page3} {
		for _, h := range page {
			require.False(t, seen[h.VideoID], "video %s appeared twice", h.VideoID)
			seen[h.VideoID] = true
		}
	}
	assert.Len(t, seen, 10)
	assert.Empty(t, paginate(hits, 12, 4))
}
