package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/tutor-x/internal/pkg/textutil"
	"github.com/kart-io/tutor-x/internal/tutor/metrics"
	"github.com/kart-io/tutor-x/internal/tutor/store"
	"github.com/kart-io/tutor-x/pkg/infra/tracing"
	"github.com/kart-io/tutor-x/pkg/llm"
	"github.com/kart-io/tutor-x/pkg/utils/errors"
	"github.com/kart-io/tutor-x/pkg/utils/json"
)

const (
	// DefaultQuestionContextChars 出题上下文长度上限（字符）。
	DefaultQuestionContextChars = 20000
	// 出题时读取的分块上限
	questionChunkLimit = 500
)

const examinerSystemPrompt = `You are a Cambridge Economics Examiner for Tripos Part IIA.
Your goal is to generate challenging, application-oriented practice questions based on the provided notes.

RULES:
- Generate 2 short-essay questions (require 200-300 word answers).
- Generate 1 quantitative question (requires step-by-step mathematical derivation).
- Focus on "application of theory" and "critical evaluation", not just definitions.
- Style: Academic, rigorous, and specific to the theories in the context.
- Formatting: Return a JSON object with a 'questions' array. Each object has 'id', 'type' (essay/quantitative), 'text', and 'hint'.`

// Question 一道练习题。
type Question struct {
	ID   any    `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
	Hint string `json:"hint"`
}

// QuestionSet 模型返回的题目集合。
type QuestionSet struct {
	Questions []Question `json:"questions"`
}

// QuestionService 根据一周的资料生成练习题。
type QuestionService struct {
	factory  store.Factory
	chat     llm.ChatProvider
	maxChars int
	metrics  *metrics.Metrics
}

// NewQuestionService creates a QuestionService.
func NewQuestionService(factory store.Factory, chat llm.ChatProvider, m *metrics.Metrics) *QuestionService {
	return &QuestionService{factory: factory, chat: chat, maxChars: DefaultQuestionContextChars, metrics: m}
}

// QuestionContext renders chunks as "[source_type] content" blocks.
func QuestionContext(chunks []*ScoredChunk, maxChars int) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, fmt.Sprintf("[%s] %s", c.SourceType, c.Content))
	}
	return textutil.TruncateString(strings.Join(parts, "\n\n"), maxChars)
}

// ParseQuestions decodes the first JSON object in resp. A response without
// any object yields an empty set.
func ParseQuestions(resp string) (*QuestionSet, error) {
	raw := textutil.ExtractJSONObject(resp)
	if raw == "" {
		return &QuestionSet{Questions: []Question{}}, nil
	}
	var set QuestionSet
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return nil, err
	}
	if set.Questions == nil {
		set.Questions = []Question{}
	}
	return &set, nil
}

// Generate asks the model for practice questions over the week's chunks.
func (s *QuestionService) Generate(ctx context.Context, weekID string) (_ *QuestionSet, err error) {
	ctx, span := tracing.StartSpan(ctx, "tutor.questions", attribute.String(tracing.AttrWeekID, weekID))
	defer span.End()
	defer func() {
		tracing.RecordError(ctx, err)
		s.metrics.RecordQuestions(err)
	}()

	if weekID == "" {
		return nil, errors.ErrTutorInvalidChat.WithMessage("weekId is required")
	}
	if _, err := s.factory.Weeks().Get(ctx, weekID); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.ErrTutorWeekNotFound
		}
		return nil, errors.ErrTutorRetrievalFailed.WithCause(err)
	}

	rows, err := s.factory.Chunks().ListByWeek(ctx, weekID, questionChunkLimit)
	if err != nil {
		return nil, errors.ErrTutorRetrievalFailed.WithCause(err)
	}
	chunks := make([]*ScoredChunk, 0, len(rows))
	for _, r := range rows {
		chunks = append(chunks, &ScoredChunk{ID: r.ID, Content: r.Content, SourceType: r.SourceType})
	}

	resp, err := s.chat.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: examinerSystemPrompt},
		{Role: llm.RoleUser, Content: "CONTEXT:\n" + QuestionContext(chunks, s.maxChars)},
	})
	if err != nil {
		return nil, errors.ErrLLMUnavailable.WithCause(err)
	}

	set, err := ParseQuestions(resp)
	if err != nil {
		logger.Errorw("failed to parse questions", "week_id", weekID, "error", err.Error())
		return nil, errors.ErrTutorGenerationFailed.WithCause(err)
	}
	return set, nil
}
