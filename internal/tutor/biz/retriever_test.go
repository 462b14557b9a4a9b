package biz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/internal/tutor/metrics"
	"github.com/kart-io/tutor-x/internal/tutor/store"
)

func seedChunks(t *testing.T, f store.Factory, weekID string, contents map[string]string) {
	t.Helper()
	rows := make([]*model.DocumentChunk, 0, len(contents))
	pos := 0
	for id, content := range contents {
		rows = append(rows, &model.DocumentChunk{
			ID:          id,
			DocumentID:  "doc-" + weekID,
			WeekID:      weekID,
			ContentHash: id,
			Position:    pos,
			Content:     content,
			SourceType:  model.SourceLecture,
		})
		pos++
	}
	require.NoError(t, f.Chunks().Upsert(context.Background(), rows))
}

func TestRetriever_ThresholdAndCount(t *testing.T) {
	f := setupFactory(t)
	seedChunks(t, f, "w1", map[string]string{
		"c1": "Price elasticity of demand measures responsiveness.",
		"c2": "Elasticity along a linear demand curve varies.",
		"c3": "Income elasticity distinguishes normal goods.",
		"c4": "Cross-price effects between substitutes.",
		"c5": "Unrelated material on labour markets.",
		"c6": "Tax incidence depends on elasticity of supply.",
	})
	vectors := newMemVectors()
	vectors.hits = []*store.VectorHit{
		{ID: "c1", Score: 0.95}, {ID: "c2", Score: 0.9}, {ID: "c3", Score: 0.85},
		{ID: "c4", Score: 0.8}, {ID: "c5", Score: 0.3}, {ID: "c6", Score: 0.6},
	}
	r := NewRetriever(vectors, f.Chunks(), DefaultRetrieverConfig(), metrics.New(prometheus.NewRegistry()))

	got, err := r.Retrieve(context.Background(), "what is elasticity", keywordVector("elasticity"), "w1", 10)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for i, c := range got {
		assert.GreaterOrEqual(t, c.Score, 0.5, c.ID)
		assert.NotEqual(t, "c5", c.ID)
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Score, c.Score)
		}
	}
	assert.Equal(t, "c1", got[0].ID)

	capped, err := r.Retrieve(context.Background(), "what is elasticity", keywordVector("elasticity"), "w1", 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)
	assert.Equal(t, ids(got[:2]), ids(capped))
}

func TestRetriever_LexicalBreaksTies(t *testing.T) {
	f := setupFactory(t)
	seedChunks(t, f, "w1", map[string]string{
		"a": "Consumer surplus and welfare.",
		"b": "Welfare loss from monopoly pricing, the monopoly deadweight loss.",
	})
	vectors := newMemVectors()
	vectors.hits = []*store.VectorHit{{ID: "a", Score: 0.8}, {ID: "b", Score: 0.8}}
	r := NewRetriever(vectors, f.Chunks(), nil, nil)

	got, err := r.Retrieve(context.Background(), "monopoly deadweight", nil, "w1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Greater(t, got[0].Lexical, got[1].Lexical)
	assert.LessOrEqual(t, got[0].Lexical, 1.0)
}

func TestRetriever_LexicalOnlyHit(t *testing.T) {
	f := setupFactory(t)
	seedChunks(t, f, "w1", map[string]string{
		"v":    "Consumer surplus under perfect competition.",
		"lex":  "Deadweight loss deadweight loss deadweight loss.",
		"weak": "A monopoly creates some deadweight.",
	})
	vectors := newMemVectors()
	vectors.hits = []*store.VectorHit{{ID: "v", Score: 0.9}}

	r := NewRetriever(vectors, f.Chunks(), nil, nil)
	got, err := r.Retrieve(context.Background(), "deadweight loss", nil, "w1", 5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"lex", "v"}, ids(got))
	for _, c := range got {
		assert.GreaterOrEqual(t, c.Score, 0.5, c.ID)
		if c.ID == "lex" {
			assert.Zero(t, c.Vector)
			assert.GreaterOrEqual(t, c.Score, 0.6)
			assert.InDelta(t, c.Lexical, c.Score, 1e-9)
		}
	}

	// 关闭后仅词项命中的候选按融合公式计分，无法越过阈值
	cfg := DefaultRetrieverConfig()
	cfg.LexicalOnly = 0
	r = NewRetriever(vectors, f.Chunks(), cfg, nil)
	got, err = r.Retrieve(context.Background(), "deadweight loss", nil, "w1", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"v"}, ids(got))
}

func TestRetriever_NothingAboveThreshold(t *testing.T) {
	f := setupFactory(t)
	seedChunks(t, f, "w1", map[string]string{"c1": "Game theory and Nash equilibrium."})
	vectors := newMemVectors()
	vectors.hits = []*store.VectorHit{{ID: "c1", Score: 0.1}}
	r := NewRetriever(vectors, f.Chunks(), nil, nil)

	got, err := r.Retrieve(context.Background(), "inflation targeting", nil, "w1", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	ctx := Assemble(SelectDiverse(got, DefaultSelectTarget), nil)
	assert.Contains(t, ctx, NoNotationMarker)
	assert.True(t, strings.HasSuffix(ctx, InsufficientContextMarker))
}

func TestRetriever_ScopedToWeek(t *testing.T) {
	f := setupFactory(t)
	seedChunks(t, f, "w1", map[string]string{"in": "Elasticity in week one."})
	seedChunks(t, f, "w2", map[string]string{"out": "Elasticity in week two."})
	vectors := newMemVectors()
	vectors.hits = []*store.VectorHit{{ID: "out", Score: 0.99}, {ID: "in", Score: 0.9}}
	r := NewRetriever(vectors, f.Chunks(), nil, nil)

	got, err := r.Retrieve(context.Background(), "elasticity", nil, "w1", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"in"}, ids(got))
}

func TestRetriever_VectorFailure(t *testing.T) {
	f := setupFactory(t)
	vectors := newMemVectors()
	vectors.err = errors.New("milvus unreachable")
	r := NewRetriever(vectors, f.Chunks(), nil, nil)

	_, err := r.Retrieve(context.Background(), "q", nil, "w1", 5)
	var retrievalErr *RetrievalError
	require.ErrorAs(t, err, &retrievalErr)
	assert.Equal(t, "week/w1", retrievalErr.Path)
}

func TestBM25_Normalised(t *testing.T) {
	docs := []*model.DocumentChunk{
		{Content: "supply supply supply demand"},
		{Content: "nothing relevant"},
	}
	scores := bm25([]string{"supply", "demand"}, docs)
	require.Len(t, scores, 2)
	assert.Greater(t, scores[0], 0.0)
	assert.LessOrEqual(t, scores[0], 1.0)
	assert.Zero(t, scores[1])

	assert.Equal(t, []float64{0, 0}, bm25(nil, docs))
}
