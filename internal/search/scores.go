package search

import (
	"sort"

	"vidflow/internal/models"
)

// normalizeScores rescales a score list to [0,1] by min-max. When every score
// is identical the list collapses to all-1 (or all-0 if the scores are zero),
// so a single-result list never vanishes from a merge.
func normalizeScores(hits []models.SearchHit) []models.SearchHit {
	if len(hits) == 0 {
		return hits
	}
	min, max := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < min {
			min = h.Score
		}
		if h.Score > max {
			max = h.Score
		}
	}
	out := make([]models.SearchHit, len(hits))
	copy(out, hits)
	if max == min {
		v := 0.0
		if max > 0 {
			v = 1.0
		}
		for i := range out {
			out[i].Score = v
		}
		return out
	}
	for i := range out {
		out[i].Score = (out[i].Score - min) / (max - min)
	}
	return out
}

// mergeWeighted unions keyword and semantic hits by video and combines their
// normalized scores as w*semantic + (1-w)*keyword. A document absent from one
// list contributes 0 for that component; only documents with no positive raw
// score on either side are dropped. Ties break by processing timestamp
// (newest first) then video_id.
func mergeWeighted(kwHits, semHits []models.SearchHit, semWeight float64) []models.SearchHit {
	// Survival is decided on raw scores before normalization: min-max pins
	// the weakest real match of a list to 0, and that must not read as
	// "no match".
	matched := make(map[string]bool, len(kwHits)+len(semHits))
	for _, h := range kwHits {
		if h.Score > 0 {
			matched[h.VideoID] = true
		}
	}
	for _, h := range semHits {
		if h.Score > 0 {
			matched[h.VideoID] = true
		}
	}

	kwHits = normalizeScores(kwHits)
	semHits = normalizeScores(semHits)

	byID := make(map[string]models.SearchHit, len(kwHits)+len(semHits))
	kwScore := make(map[string]float64, len(kwHits))
	semScore := make(map[string]float64, len(semHits))
	for _, h := range kwHits {
		byID[h.VideoID] = h
		kwScore[h.VideoID] = h.Score
	}
	for _, h := range semHits {
		if _, ok := byID[h.VideoID]; !ok {
			byID[h.VideoID] = h
		}
		semScore[h.VideoID] = h.Score
	}

	out := make([]models.SearchHit, 0, len(byID))
	for id, h := range byID {
		if !matched[id] {
			continue
		}
		h.Score = semWeight*semScore[id] + (1-semWeight)*kwScore[id]
		out = append(out, h)
	}
	sortHits(out)
	return out
}

func sortHits(hits []models.SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].ProcessingTimestamp.Equal(hits[j].ProcessingTimestamp) {
			return hits[i].ProcessingTimestamp.After(hits[j].ProcessingTimestamp)
		}
		return hits[i].VideoID < hits[j].VideoID
	})
}

func paginate(hits []models.SearchHit, offset, limit int) []models.SearchHit {
	if offset >= len(hits) {
		return []models.SearchHit{}
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	return hits[offset:end]
}
