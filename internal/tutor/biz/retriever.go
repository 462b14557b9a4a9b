package biz

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/internal/pkg/textutil"
	"github.com/kart-io/tutor-x/internal/tutor/metrics"
	"github.com/kart-io/tutor-x/internal/tutor/store"
	"github.com/kart-io/tutor-x/pkg/infra/tracing"
)

// ScoredChunk 检索候选及其得分。
type ScoredChunk struct {
	ID         string
	DocumentID string
	Content    string
	SourceType model.SourceType
	Density    float64
	// Vector 余弦相似度，限制在 [0,1]
	Vector float64
	// Lexical BM25 词项得分，归一化到 [0,1]
	Lexical float64
	// Score 融合得分
	Score float64
}

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// Alpha 向量得分权重，词项得分权重为 1-Alpha。
	Alpha float64
	// Threshold 融合得分下限。
	Threshold float64
	// Count 默认返回数量。
	Count int
	// Overfetch 每路召回数量为 Count*Overfetch。
	Overfetch int
	// LexicalOnly 未进入向量召回的词项命中只按词项得分计分，且需达到
	// max(Threshold, LexicalOnly)。<= 0 时按融合公式计分。
	LexicalOnly float64
}

// DefaultRetrieverConfig returns the default fusion policy.
func DefaultRetrieverConfig() *RetrieverConfig {
	return &RetrieverConfig{Alpha: 0.7, Threshold: 0.5, Count: 5, Overfetch: 4, LexicalOnly: 0.6}
}

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Retriever 负责混合检索。
type Retriever struct {
	vectors store.VectorStore
	chunks  store.ChunkStore
	config  *RetrieverConfig
	metrics *metrics.Metrics
}

// NewRetriever 创建检索器实例。
func NewRetriever(vectors store.VectorStore, chunks store.ChunkStore, config *RetrieverConfig, m *metrics.Metrics) *Retriever {
	if config == nil {
		config = DefaultRetrieverConfig()
	}
	return &Retriever{vectors: vectors, chunks: chunks, config: config, metrics: m}
}

// Retrieve returns at most count chunks of the week whose fused score clears
// the threshold, best first. count <= 0 uses the configured default. An empty
// result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, embedding []float32, weekID string, count int) (result []*ScoredChunk, err error) {
	ctx, span := tracing.StartSpan(ctx, "tutor.retrieve", attribute.String(tracing.AttrWeekID, weekID))
	defer span.End()

	start := time.Now()
	defer func() {
		r.metrics.RecordRetrieval(time.Since(start), len(result), err)
		tracing.RecordError(ctx, err)
	}()

	if count <= 0 {
		count = r.config.Count
	}
	fetch := count * max(r.config.Overfetch, 1)

	// 1. 向量召回
	hits, err := r.vectors.Search(ctx, weekID, embedding, fetch)
	if err != nil {
		return nil, &RetrievalError{Path: "week/" + weekID, Err: err}
	}
	vectorScore := make(map[string]float64, len(hits))
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		vectorScore[h.ID] = textutil.Clamp01(float64(h.Score))
		ids = append(ids, h.ID)
	}
	pool, err := r.chunks.GetByIDs(ctx, ids)
	if err != nil {
		return nil, &RetrievalError{Path: "week/" + weekID, Err: err}
	}

	// 2. 词项召回，失败时仅使用向量结果
	terms := textutil.Tokenize(query)
	lexical, err := r.chunks.SearchLexical(ctx, weekID, terms, fetch)
	if err != nil {
		logger.Warnw("lexical search failed, using vector results only", "week_id", weekID, "error", err.Error())
		lexical = nil
	}
	seen := make(map[string]struct{}, len(pool)+len(lexical))
	for _, c := range pool {
		seen[c.ID] = struct{}{}
	}
	for _, c := range lexical {
		if _, ok := seen[c.ID]; !ok {
			seen[c.ID] = struct{}{}
			pool = append(pool, c)
		}
	}

	// 3. 融合
	lexScores := bm25(terms, pool)
	candidates := make([]*ScoredChunk, 0, len(pool))
	for i, c := range pool {
		if c.WeekID != "" && c.WeekID != weekID {
			continue
		}
		vector, fromVector := vectorScore[c.ID]
		sc := &ScoredChunk{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Content:    c.Content,
			SourceType: c.SourceType,
			Density:    c.MathematicalDensity,
			Vector:     vector,
			Lexical:    lexScores[i],
		}
		floor := r.config.Threshold
		if fromVector || r.config.LexicalOnly <= 0 {
			sc.Score = r.config.Alpha*sc.Vector + (1-r.config.Alpha)*sc.Lexical
		} else {
			// 超出向量召回范围，没有向量证据可融合
			sc.Score = sc.Lexical
			floor = max(floor, r.config.LexicalOnly)
		}
		if sc.Score < floor {
			continue
		}
		candidates = append(candidates, sc)
	}

	slices.SortStableFunc(candidates, func(a, b *ScoredChunk) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(candidates) > count {
		candidates = candidates[:count]
	}

	tracing.AddSpanAttributes(ctx,
		attribute.Int(tracing.AttrCandidates, len(pool)),
		attribute.Int(tracing.AttrChunkCount, len(candidates)))
	return candidates, nil
}

// bm25 scores each document against terms and normalises by the score a
// document would reach with saturated term frequency for every term.
func bm25(terms []string, docs []*model.DocumentChunk) []float64 {
	scores := make([]float64, len(docs))
	if len(terms) == 0 || len(docs) == 0 {
		return scores
	}

	tokens := make([]map[string]int, len(docs))
	lengths := make([]int, len(docs))
	var totalLen int
	for i, d := range docs {
		words := textutil.Words(d.Content)
		tf := make(map[string]int, len(words))
		for _, w := range words {
			tf[w]++
		}
		tokens[i] = tf
		lengths[i] = len(words)
		totalLen += len(words)
	}
	avgLen := float64(totalLen) / float64(len(docs))
	if avgLen == 0 {
		return scores
	}

	n := float64(len(docs))
	var ceiling float64
	idf := make(map[string]float64, len(terms))
	for _, t := range terms {
		df := 0
		for _, tf := range tokens {
			if tf[t] > 0 {
				df++
			}
		}
		idf[t] = math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
		ceiling += idf[t] * (bm25K1 + 1)
	}
	if ceiling == 0 {
		return scores
	}

	for i, tf := range tokens {
		docLen := float64(lengths[i])
		var s float64
		for _, t := range terms {
			f := float64(tf[t])
			if f == 0 {
				continue
			}
			s += idf[t] * f * (bm25K1 + 1) / (f + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
		}
		scores[i] = textutil.Clamp01(s / ceiling)
	}
	return scores
}
