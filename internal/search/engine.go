package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"vidflow/internal/config"
	"vidflow/internal/gateway"
	"vidflow/internal/models"
	"vidflow/internal/storage"
	"vidflow/internal/util"

	"github.com/jackc/pgx/v5"
)

// Queryer is the slice of the pgx pool the engine needs, kept narrow so tests
// can stub it.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Engine answers read-only search queries over published documents. It never
// writes to the index.
type Engine struct {
	q      Queryer
	videos *storage.VideoRepo
	gw     gateway.Gateway
	tun    config.Tunables
	log    *slog.Logger
}

func NewEngine(db *storage.DB, gw gateway.Gateway, tun config.Tunables, log *slog.Logger) *Engine {
	return &Engine{
		q:      db.Pool,
		videos: storage.NewVideoRepo(db),
		gw:     gw,
		tun:    tun,
		log:    log,
	}
}

// Options are shared pagination knobs. MaxResults is clamped to [1, max] with
// the configured default when unset; a negative offset is rejected.
type Options struct {
	MaxResults int `json:"max_results"`
	Offset     int `json:"offset"`
}

func (e *Engine) clamp(opt Options) (Options, error) {
	if opt.Offset < 0 {
		return opt, fmt.Errorf("offset must not be negative: %w", util.ErrValidation)
	}
	if opt.MaxResults == 0 {
		opt.MaxResults = e.tun.Search.DefaultMaxResults
	}
	if opt.MaxResults < 1 {
		return opt, fmt.Errorf("max_results must be positive: %w", util.ErrValidation)
	}
	if opt.MaxResults > e.tun.Search.MaxMaxResults {
		opt.MaxResults = e.tun.Search.MaxMaxResults
	}
	return opt, nil
}

// Weighted text fields. The letter ranks title highest and the transcript
// lowest for ts_rank.
var keywordFields = map[string]string{
	"title":      `setweight(to_tsvector('english', COALESCE(title,'')), 'A')`,
	"summary":    `setweight(to_tsvector('english', COALESCE(summary,'')), 'B')`,
	"entities":   `setweight(to_tsvector('english', COALESCE(entity_text,'')), 'C')`,
	"transcript": `setweight(to_tsvector('english', COALESCE(transcript,'')), 'D')`,
}

func (e *Engine) resolveFields(fields []string) (string, error) {
	if len(fields) == 0 {
		fields = e.tun.Search.DefaultFields
	}
	exprs := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		expr, ok := keywordFields[f]
		if !ok {
			return "", fmt.Errorf("unknown search field %q: %w", f, util.ErrValidation)
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		exprs = append(exprs, expr)
	}
	return strings.Join(exprs, " || "), nil
}

func joinKeywords(keywords []string) string {
	parts := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			parts = append(parts, k)
		}
	}
	return strings.Join(parts, " ")
}

const hitColumns = `video_id, title, COALESCE(summary,''), COALESCE(thumbnail_ref,''),
       storage_bucket, storage_key, processing_timestamp`

func scanHits(rows pgx.Rows) ([]models.SearchHit, error) {
	defer rows.Close()
	out := make([]models.SearchHit, 0)
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(&h.VideoID, &h.Title, &h.Summary, &h.ThumbnailRef,
			&h.StorageRef.Bucket, &h.StorageRef.Key, &h.ProcessingTimestamp, &h.Score); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search hits: %w", err)
	}
	return out, nil
}

type KeywordQuery struct {
	Keywords []string `json:"keywords"`
	Fields   []string `json:"fields,omitempty"`
	Options
}

func (e *Engine) Keyword(ctx context.Context, q KeywordQuery) ([]models.SearchHit, error) {
	terms := joinKeywords(q.Keywords)
	if terms == "" {
		return nil, fmt.Errorf("at least one keyword is required: %w", util.ErrValidation)
	}
	opt, err := e.clamp(q.Options)
	if err != nil {
		return nil, err
	}
	vecExpr, err := e.resolveFields(q.Fields)
	if err != nil {
		return nil, err
	}
	return e.keywordQuery(ctx, terms, vecExpr, opt.MaxResults, opt.Offset)
}

func (e *Engine) keywordQuery(ctx context.Context, terms, vecExpr string, limit, offset int) ([]models.SearchHit, error) {
	sql := `
SELECT ` + hitColumns + `,
       ts_rank(` + vecExpr + `, plainto_tsquery('english', $1)) AS score
FROM videos
WHERE published
  AND (` + vecExpr + `) @@ plainto_tsquery('english', $1)
ORDER BY score DESC, processing_timestamp DESC, video_id ASC
LIMIT $2 OFFSET $3`
	rows, err := e.q.Query(ctx, sql, terms, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return scanHits(rows)
}

type SemanticQuery struct {
	Query string `json:"query"`
	// Threshold discards hits below this cosine similarity. Zero means no
	// filter.
	Threshold float64 `json:"similarity_threshold,omitempty"`
	Options
}

func (e *Engine) Semantic(ctx context.Context, q SemanticQuery) ([]models.SearchHit, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, fmt.Errorf("query is required: %w", util.ErrValidation)
	}
	if q.Threshold < 0 || q.Threshold > 1 {
		return nil, fmt.Errorf("similarity_threshold must be within [0,1]: %w", util.ErrValidation)
	}
	opt, err := e.clamp(q.Options)
	if err != nil {
		return nil, err
	}
	vec, err := e.embedQuery(ctx, q.Query)
	if err != nil {
		return nil, err
	}
	return e.semanticQuery(ctx, vec, q.Threshold, opt.MaxResults, opt.Offset)
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.tun.QueryEmbedTimeout())
	defer cancel()
	vec, _, err := e.gw.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vec, nil
}

func (e *Engine) semanticQuery(ctx context.Context, vec []float32, threshold float64, limit, offset int) ([]models.SearchHit, error) {
	args := []any{storage.VectorLiteral(vec), limit, offset}
	filter := thresholdClause("1 - (insights_embedding <=> $1::vector)", threshold, &args)
	rows, err := e.q.Query(ctx, `
SELECT `+hitColumns+`,
       1 - (insights_embedding <=> $1::vector) AS score
FROM videos
WHERE published`+filter+`
ORDER BY insights_embedding <=> $1::vector, processing_timestamp DESC, video_id ASC
LIMIT $2 OFFSET $3`, args...)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	return scanHits(rows)
}

// thresholdClause adds a similarity floor when the threshold is set. Zero
// means no filter at all: cosine similarity can go negative and those
// documents still qualify.
func thresholdClause(expr string, threshold float64, args *[]any) string {
	if threshold <= 0 {
		return ""
	}
	*args = append(*args, threshold)
	return fmt.Sprintf("\n  AND %s >= $%d", expr, len(*args))
}

type HybridQuery struct {
	Query          string   `json:"query"`
	Keywords       []string `json:"keywords,omitempty"`
	SemanticWeight float64  `json:"semantic_weight"`
	Fields         []string `json:"fields,omitempty"`
	Options
}

// Hybrid runs the keyword and semantic searches in parallel, min-max
// normalizes each score list and merges with the requested weight. The
// keyword side uses the explicit keyword list when given, the query text
// otherwise. If exactly one side fails the other's results are returned
// as-is.
func (e *Engine) Hybrid(ctx context.Context, q HybridQuery) ([]models.SearchHit, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, fmt.Errorf("query is required: %w", util.ErrValidation)
	}
	if q.SemanticWeight < 0 || q.SemanticWeight > 1 {
		return nil, fmt.Errorf("semantic_weight must be within [0,1]: %w", util.ErrValidation)
	}
	opt, err := e.clamp(q.Options)
	if err != nil {
		return nil, err
	}
	vecExpr, err := e.resolveFields(q.Fields)
	if err != nil {
		return nil, err
	}
	terms := joinKeywords(q.Keywords)
	if terms == "" {
		terms = strings.TrimSpace(q.Query)
	}

	// Each side fetches enough candidates to cover the requested page after
	// merging.
	pool := opt.Offset + opt.MaxResults

	var (
		kwHits, semHits []models.SearchHit
		kwErr, semErr   error
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		kwHits, kwErr = e.keywordQuery(ctx, terms, vecExpr, pool, 0)
	}()
	go func() {
		defer wg.Done()
		var vec []float32
		vec, semErr = e.embedQuery(ctx, q.Query)
		if semErr != nil {
			return
		}
		semHits, semErr = e.semanticQuery(ctx, vec, 0, pool, 0)
	}()
	wg.Wait()

	if kwErr != nil && semErr != nil {
		return nil, fmt.Errorf("hybrid search: keyword=%v, semantic=%w", kwErr, semErr)
	}
	if kwErr != nil {
		e.log.Warn("hybrid search degraded to semantic only", "error", kwErr)
		return paginate(semHits, opt.Offset, opt.MaxResults), nil
	}
	if semErr != nil {
		e.log.Warn("hybrid search degraded to keyword only", "error", semErr)
		return paginate(kwHits, opt.Offset, opt.MaxResults), nil
	}

	merged := mergeWeighted(kwHits, semHits, q.SemanticWeight)
	return paginate(merged, opt.Offset, opt.MaxResults), nil
}

type TitleQuery struct {
	Title string `json:"title"`
	Fuzzy bool   `json:"fuzzy,omitempty"`
	// MaxDistance bounds the edit distance in fuzzy mode; zero uses the
	// configured default.
	MaxDistance int `json:"max_distance,omitempty"`
	Options
}

// Title matches case-insensitively. Exact mode requires the whole title to
// match; fuzzy mode tolerates up to MaxDistance edits and ranks by
// increasing distance.
func (e *Engine) Title(ctx context.Context, q TitleQuery) ([]models.SearchHit, error) {
	if strings.TrimSpace(q.Title) == "" {
		return nil, fmt.Errorf("title is required: %w", util.ErrValidation)
	}
	opt, err := e.clamp(q.Options)
	if err != nil {
		return nil, err
	}

	if !q.Fuzzy {
		rows, err := e.q.Query(ctx, `
SELECT `+hitColumns+`,
       1.0 AS score
FROM videos
WHERE published AND lower(title) = lower($1)
ORDER BY processing_timestamp DESC, video_id ASC
LIMIT $2 OFFSET $3`, q.Title, opt.MaxResults, opt.Offset)
		if err != nil {
			return nil, fmt.Errorf("title search: %w", err)
		}
		return scanHits(rows)
	}

	maxDist := q.MaxDistance
	if maxDist <= 0 {
		maxDist = e.tun.Search.FuzzyDistance
	}
	rows, err := e.q.Query(ctx, `
SELECT `+hitColumns+`,
       1.0 / (1 + levenshtein(lower(title), lower($1))) AS score
FROM videos
WHERE published
  AND levenshtein_less_equal(lower(title), lower($1), $2) <= $2
ORDER BY levenshtein(lower(title), lower($1)) ASC, processing_timestamp DESC, video_id ASC
LIMIT $3 OFFSET $4`, q.Title, maxDist, opt.MaxResults, opt.Offset)
	if err != nil {
		return nil, fmt.Errorf("fuzzy title search: %w", err)
	}
	return scanHits(rows)
}

type SimilarQuery struct {
	VideoID string `json:"video_id"`
	// UseContentEmbedding compares raw-content vectors instead of the
	// default insight vectors.
	UseContentEmbedding bool    `json:"use_content_embedding,omitempty"`
	Threshold           float64 `json:"similarity_threshold,omitempty"`
	Options
}

// Similar ranks other published videos by cosine similarity to the reference
// video's embedding, excluding the reference itself.
func (e *Engine) Similar(ctx context.Context, q SimilarQuery) ([]models.SearchHit, error) {
	if strings.TrimSpace(q.VideoID) == "" {
		return nil, fmt.Errorf("video_id is required: %w", util.ErrValidation)
	}
	if q.Threshold < 0 || q.Threshold > 1 {
		return nil, fmt.Errorf("similarity_threshold must be within [0,1]: %w", util.ErrValidation)
	}
	opt, err := e.clamp(q.Options)
	if err != nil {
		return nil, err
	}
	ok, err := e.videos.Exists(ctx, q.VideoID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("video %s: %w", q.VideoID, util.ErrNotFound)
	}

	col := "insights_embedding"
	if q.UseContentEmbedding {
		col = "content_embedding"
	}
	args := []any{q.VideoID, opt.MaxResults, opt.Offset}
	filter := thresholdClause("1 - (v."+col+" <=> s."+col+")", q.Threshold, &args)
	rows, err := e.q.Query(ctx, `
SELECT `+hitColumns+`,
       1 - (v.`+col+` <=> s.`+col+`) AS score
FROM videos v,
     (SELECT `+col+` FROM videos WHERE video_id = $1 AND published) s
WHERE v.published AND v.video_id <> $1`+filter+`
ORDER BY v.`+col+` <=> s.`+col+`, v.processing_timestamp DESC, v.video_id ASC
LIMIT $2 OFFSET $3`, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return scanHits(rows)
}
