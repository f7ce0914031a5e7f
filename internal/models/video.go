package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// StorageRef locates the raw video object in bucket storage.
type StorageRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (r StorageRef) String() string {
	return r.Bucket + "/" + r.Key
}

// Chapter is a time-bounded narrative unit of the video, in seconds.
type Chapter struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Title   string  `json:"title"`
	Summary string  `json:"summary"`
}

type TranscriptSegment struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
}

type Transcript struct {
	FullText string              `json:"full_text"`
	Segments []TranscriptSegment `json:"segments"`
}

type Insights struct {
	Summary          string     `json:"summary"`
	Topics           []string   `json:"topics"`
	Hashtags         []string   `json:"hashtags"`
	Sentiment        string     `json:"sentiment"`
	ContentAnalytics string     `json:"content_analytics"`
	Chapters         []Chapter  `json:"chapters"`
	Transcript       Transcript `json:"transcript"`
}

// Entities are deduplicated string sets with no ordering guarantee.
type Entities struct {
	Brands      []string `json:"brands"`
	Companies   []string `json:"companies"`
	PersonNames []string `json:"person_names"`
}

// VideoDocument is the indexed unit. The Indexer owns all writes; search only
// reads. A document is only visible to search once both embedding vectors are
// populated.
type VideoDocument struct {
	VideoID             string     `json:"video_id"`
	Title               string     `json:"title"`
	ThumbnailRef        string     `json:"thumbnail_ref,omitempty"`
	StorageRef          StorageRef `json:"storage_ref"`
	ProcessingTimestamp time.Time  `json:"processing_timestamp"`
	Insights            Insights   `json:"insights"`
	Entities            Entities   `json:"entities"`
	ContentEmbedding    []float32  `json:"content_embedding,omitempty"`
	InsightsEmbedding   []float32  `json:"insights_embedding,omitempty"`
}

// Validate enforces the indexing invariants. The expected embedding dimension
// is fixed at index-creation time; dim <= 0 skips the dimension check.
func (d *VideoDocument) Validate(dim int) error {
	if strings.TrimSpace(d.VideoID) == "" {
		return fmt.Errorf("video_id is required")
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(d.ContentEmbedding) == 0 || len(d.InsightsEmbedding) == 0 {
		return fmt.Errorf("document %s is missing embeddings", d.VideoID)
	}
	if dim > 0 {
		if len(d.ContentEmbedding) != dim {
			return fmt.Errorf("content embedding has %d dimensions, want %d", len(d.ContentEmbedding), dim)
		}
		if len(d.InsightsEmbedding) != dim {
			return fmt.Errorf("insights embedding has %d dimensions, want %d", len(d.InsightsEmbedding), dim)
		}
	}
	if err := validateChapters(d.Insights.Chapters); err != nil {
		return err
	}
	if err := validateSegments(d.Insights.Transcript.Segments); err != nil {
		return err
	}
	return nil
}

func validateChapters(chapters []Chapter) error {
	for i, c := range chapters {
		if c.Start >= c.End {
			return fmt.Errorf("chapter %d: start %.2f not before end %.2f", i, c.Start, c.End)
		}
		if i > 0 {
			prev := chapters[i-1]
			if c.Start < prev.Start {
				return fmt.Errorf("chapter %d out of order", i)
			}
			if c.Start < prev.End {
				return fmt.Errorf("chapter %d overlaps chapter %d", i, i-1)
			}
		}
	}
	return nil
}

func validateSegments(segs []TranscriptSegment) error {
	for i, s := range segs {
		if s.StartTime >= s.EndTime {
			return fmt.Errorf("segment %d: start %.2f not before end %.2f", i, s.StartTime, s.EndTime)
		}
		if i > 0 && s.StartTime < segs[i-1].StartTime {
			return fmt.Errorf("segment %d out of order", i)
		}
	}
	return nil
}

// Normalize dedupes entity lists and sorts chapters and segments by start
// time so the invariants can be checked deterministically.
func (d *VideoDocument) Normalize() {
	d.Entities.Brands = dedupe(d.Entities.Brands)
	d.Entities.Companies = dedupe(d.Entities.Companies)
	d.Entities.PersonNames = dedupe(d.Entities.PersonNames)
	sort.SliceStable(d.Insights.Chapters, func(i, j int) bool {
		return d.Insights.Chapters[i].Start < d.Insights.Chapters[j].Start
	})
	sort.SliceStable(d.Insights.Transcript.Segments, func(i, j int) bool {
		return d.Insights.Transcript.Segments[i].StartTime < d.Insights.Transcript.Segments[j].StartTime
	})
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// EntityText flattens all entity lists into one searchable blob.
func (d *VideoDocument) EntityText() string {
	parts := make([]string, 0, len(d.Entities.Brands)+len(d.Entities.Companies)+len(d.Entities.PersonNames))
	parts = append(parts, d.Entities.Brands...)
	parts = append(parts, d.Entities.Companies...)
	parts = append(parts, d.Entities.PersonNames...)
	return strings.Join(parts, " ")
}
