package biz

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/internal/tutor/store"
	"github.com/kart-io/tutor-x/pkg/component/database"
	"github.com/kart-io/tutor-x/pkg/llm"
	"github.com/kart-io/tutor-x/pkg/llm/resilience"
	dbopts "github.com/kart-io/tutor-x/pkg/options/database"
)

const testDim = 3

func setupFactory(t *testing.T) store.Factory {
	t.Helper()
	opts := dbopts.NewOptions()
	opts.Driver = dbopts.DriverSQLite
	opts.SQLitePath = ":memory:"

	db, err := database.New(context.Background(), opts)
	require.NoError(t, err)

	f := store.NewFactory(db)
	require.NoError(t, f.AutoMigrate())
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func seedWeek(t *testing.T, f store.Factory) (*model.Paper, *model.Week) {
	t.Helper()
	ctx := context.Background()
	paper := &model.Paper{Title: "Part IIA Microeconomics", Year: 2024}
	require.NoError(t, f.Papers().Create(ctx, paper))
	week, err := f.Weeks().GetOrCreate(ctx, paper.ID, "Michaelmas", 2)
	require.NoError(t, err)
	return paper, week
}

func fastRetry() *resilience.RetryConfig {
	return &resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

// mockChat 模拟对话模型。
type mockChat struct {
	mu       sync.Mutex
	resp     string
	err      error
	tokens   []string
	calls    int
	messages []llm.Message
	options  llm.ChatOptions
}

var _ llm.StreamingChatProvider = (*mockChat)(nil)

func (m *mockChat) Name() string { return "mock-chat" }

func (m *mockChat) Chat(_ context.Context, messages []llm.Message, opts ...llm.ChatOption) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.messages = messages
	m.options = llm.ApplyChatOptions(opts...)
	return m.resp, m.err
}

func (m *mockChat) Generate(ctx context.Context, prompt, system string) (string, error) {
	return m.Chat(ctx, []llm.Message{{Role: llm.RoleSystem, Content: system}, {Role: llm.RoleUser, Content: prompt}})
}

func (m *mockChat) ChatStream(_ context.Context, messages []llm.Message, opts ...llm.ChatOption) (<-chan llm.StreamChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.messages = messages
	m.options = llm.ApplyChatOptions(opts...)
	if m.err != nil {
		return nil, m.err
	}
	ch := make(chan llm.StreamChunk, len(m.tokens))
	for _, tok := range m.tokens {
		ch <- llm.StreamChunk{Content: tok}
	}
	close(ch)
	return ch, nil
}

// mockEmbedding 按关键词生成确定性向量：[经济, 数学, 常数]。
type mockEmbedding struct {
	mu    sync.Mutex
	err   error
	calls int
}

var _ llm.EmbeddingProvider = (*mockEmbedding)(nil)

func (m *mockEmbedding) Name() string { return "mock-embedding" }

func (m *mockEmbedding) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = keywordVector(text)
	}
	return out, nil
}

func (m *mockEmbedding) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	v := []float32{0, 0, 0.1}
	if strings.Contains(lower, "elasticity") || strings.Contains(lower, "demand") {
		v[0] = 1
	}
	if strings.Contains(lower, "$") || strings.Contains(lower, "derivative") {
		v[1] = 1
	}
	return v
}

// memVectors 内存向量库，按余弦相似度检索。
type memVectors struct {
	mu      sync.Mutex
	records map[string]*store.VectorRecord
	hits    []*store.VectorHit
	err     error
}

var _ store.VectorStore = (*memVectors)(nil)

func newMemVectors() *memVectors {
	return &memVectors{records: make(map[string]*store.VectorRecord)}
}

func (m *memVectors) Upsert(_ context.Context, records []*store.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

func (m *memVectors) Search(_ context.Context, weekID string, embedding []float32, topK int) ([]*store.VectorHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.hits != nil {
		return m.hits, nil
	}
	var hits []*store.VectorHit
	for _, r := range m.records {
		if r.WeekID != weekID {
			continue
		}
		hits = append(hits, &store.VectorHit{ID: r.ID, Score: cosine(embedding, r.Embedding)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *memVectors) Prune(_ context.Context, documentID string, keep []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}
	for id, r := range m.records {
		if _, ok := kept[id]; !ok && r.DocumentID == documentID {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *memVectors) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// mockParser 返回固定的 markdown，前 failures 次调用失败。
type mockParser struct {
	mu       sync.Mutex
	markdown string
	failures int
	calls    int
}

var _ Parser = (*mockParser)(nil)

func (m *mockParser) Parse(context.Context, string, []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failures {
		return "", errors.New("parser unavailable")
	}
	return m.markdown, nil
}

func (m *mockParser) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockPublisher 记录发布的摄取事件。
type mockPublisher struct {
	mu     sync.Mutex
	events []*model.IngestEvent
	err    error
}

var _ IngestPublisher = (*mockPublisher)(nil)

func (m *mockPublisher) Publish(_ context.Context, ev *model.IngestEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

func chunk(id string, st model.SourceType, score float64) *ScoredChunk {
	return &ScoredChunk{ID: id, SourceType: st, Score: score, Content: "content " + id}
}
