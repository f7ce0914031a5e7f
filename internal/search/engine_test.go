package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"vidflow/internal/config"
	"vidflow/internal/gateway"
	"vidflow/internal/util"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureQueryer records the SQL the engine emits instead of executing it.
type captureQueryer struct {
	sql  string
	args []any
}

func (c *captureQueryer) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	c.sql = sql
	c.args = args
	return nil, errors.New("no database in tests")
}

func testEngine() *Engine {
	var tun config.Tunables
	config.ApplyDefaults(&tun)
	return &Engine{tun: tun, log: slog.Default()}
}

func TestClampAppliesDefaultAndCap(t *testing.T) {
	e := testEngine()

	opt, err := e.clamp(Options{})
	require.NoError(t, err)
	assert.Equal(t, 10, opt.MaxResults)

	opt, err = e.clamp(Options{MaxResults: 500})
	require.NoError(t, err)
	assert.Equal(t, 100, opt.MaxResults)

	_, err = e.clamp(Options{Offset: -1})
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = e.clamp(Options{MaxResults: -5})
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestResolveFieldsRejectsUnknown(t *testing.T) {
	e := testEngine()

	_, err := e.resolveFields([]string{"title", "description"})
	assert.ErrorIs(t, err, util.ErrValidation)

	expr, err := e.resolveFields(nil)
	require.NoError(t, err)
	assert.Contains(t, expr, "'A'")
	assert.Contains(t, expr, "'D'")
}

func TestResolveFieldsDedupes(t *testing.T) {
	e := testEngine()
	expr, err := e.resolveFields([]string{"Title", "title"})
	require.NoError(t, err)
	assert.Equal(t, keywordFields["title"], expr)
}

func TestQueriesRejectEmptyInput(t *testing.T) {
	e := testEngine()
	ctx := context.Background()

	_, err := e.Keyword(ctx, KeywordQuery{Keywords: []string{"  ", ""}})
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = e.Semantic(ctx, SemanticQuery{})
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = e.Hybrid(ctx, HybridQuery{Query: "", SemanticWeight: 0.5})
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = e.Title(ctx, TitleQuery{})
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = e.Similar(ctx, SimilarQuery{})
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestHybridRejectsOutOfRangeWeight(t *testing.T) {
	e := testEngine()
	ctx := context.Background()

	_, err := e.Hybrid(ctx, HybridQuery{Query: "go", SemanticWeight: 1.5})
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = e.Hybrid(ctx, HybridQuery{Query: "go", SemanticWeight: -0.1})
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestThresholdValidation(t *testing.T) {
	e := testEngine()
	ctx := context.Background()

	_, err := e.Semantic(ctx, SemanticQuery{Query: "go", Threshold: 1.2})
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = e.Similar(ctx, SimilarQuery{VideoID: "v1", Threshold: -0.5})
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestSemanticThresholdZeroSkipsFilter(t *testing.T) {
	q := &captureQueryer{}
	e := testEngine()
	e.q = q
	e.gw = gateway.NewMockGateway(8)
	ctx := context.Background()

	_, err := e.Semantic(ctx, SemanticQuery{Query: "go"})
	require.Error(t, err)
	assert.NotContains(t, q.sql, ">=")
	assert.Len(t, q.args, 3)

	_, err = e.Semantic(ctx, SemanticQuery{Query: "go", Threshold: 0.9})
	require.Error(t, err)
	assert.Contains(t, q.sql, ">= $4")
	assert.Len(t, q.args, 4)
}

func TestThresholdClause(t *testing.T) {
	args := []any{"vec", 10, 0}
	assert.Empty(t, thresholdClause("sim", 0, &args))
	assert.Len(t, args, 3)

	clause := thresholdClause("sim", 0.25, &args)
	assert.Contains(t, clause, "sim >= $4")
	assert.Len(t, args, 4)
}

func TestJoinKeywordsDropsBlanks(t *testing.T) {
	assert.Equal(t, "go testing", joinKeywords([]string{" go ", "", "testing"}))
	assert.Equal(t, "", joinKeywords(nil))
}
