package biz

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/tutor-x/internal/tutor/metrics"
	"github.com/kart-io/tutor-x/internal/tutor/store"
	"github.com/kart-io/tutor-x/pkg/infra/tracing"
	"github.com/kart-io/tutor-x/pkg/llm"
	"github.com/kart-io/tutor-x/pkg/utils/errors"
)

// 对话默认参数
const (
	DefaultChatTemperature = 0.2
	// 送入多样性选择的候选数为 target 的倍数
	candidateFactor = 3
)

// ChatRequest 对话请求。
type ChatRequest struct {
	Messages []llm.Message
	WeekID   string
}

// ChatContext 一次对话请求组装出的上下文，便于调试与测试。
type ChatContext struct {
	Query        string
	Chunks       []*ScoredChunk
	SystemPrompt string
}

// ChatService 基于检索结果的导师对话。
type ChatService struct {
	factory   store.Factory
	embedder  *Embedder
	retriever *Retriever
	chat      llm.StreamingChatProvider
	target    int
	metrics   *metrics.Metrics
}

// NewChatService creates a ChatService. target <= 0 uses DefaultSelectTarget.
func NewChatService(factory store.Factory, embedder *Embedder, retriever *Retriever, chat llm.StreamingChatProvider, target int, m *metrics.Metrics) *ChatService {
	if target <= 0 {
		target = DefaultSelectTarget
	}
	return &ChatService{
		factory:   factory,
		embedder:  embedder,
		retriever: retriever,
		chat:      chat,
		target:    target,
		metrics:   m,
	}
}

// LatestUserMessage returns the content of the last user message.
func LatestUserMessage(messages []llm.Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser && strings.TrimSpace(messages[i].Content) != "" {
			return messages[i].Content, true
		}
	}
	return "", false
}

// BuildContext runs retrieval for the latest user message and assembles the
// system prompt. Threshold misses produce the insufficient-context marker.
func (s *ChatService) BuildContext(ctx context.Context, req *ChatRequest) (*ChatContext, error) {
	if req == nil || req.WeekID == "" {
		return nil, errors.ErrTutorInvalidChat.WithMessage("weekId is required")
	}
	query, ok := LatestUserMessage(req.Messages)
	if !ok {
		return nil, errors.ErrTutorInvalidChat.WithMessage("No user message")
	}

	if _, err := s.factory.Weeks().Get(ctx, req.WeekID); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.ErrTutorWeekNotFound
		}
		return nil, errors.ErrTutorRetrievalFailed.WithCause(err)
	}

	embedding, err := s.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, errors.ErrTutorRetrievalFailed.WithCause(err)
	}

	candidates, err := s.retriever.Retrieve(ctx, query, embedding, req.WeekID, s.target*candidateFactor)
	if err != nil {
		return nil, errors.ErrTutorRetrievalFailed.WithCause(err)
	}
	selected := SelectDiverse(candidates, s.target)

	notation, err := s.factory.Notation().ListByWeek(ctx, req.WeekID)
	if err != nil {
		// 符号表缺失不影响回答
		logger.Warnw("failed to load notation", "week_id", req.WeekID, "error", err.Error())
		notation = nil
	}

	return &ChatContext{
		Query:        query,
		Chunks:       selected,
		SystemPrompt: SystemPrompt(Assemble(selected, notation)),
	}, nil
}

// Chat streams the tutor's answer. Errors before the first token are
// returned directly; later model errors arrive on the channel.
func (s *ChatService) Chat(ctx context.Context, req *ChatRequest) (_ <-chan llm.StreamChunk, err error) {
	ctx, span := tracing.StartSpan(ctx, "tutor.chat", attribute.String(tracing.AttrWeekID, weekIDOf(req)))
	defer span.End()
	defer func() {
		tracing.RecordError(ctx, err)
		s.metrics.RecordChat(err)
	}()

	cc, err := s.BuildContext(ctx, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int(tracing.AttrCandidates, len(cc.Chunks)))

	messages := make([]llm.Message, 0, len(req.Messages)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: cc.SystemPrompt})
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			continue
		}
		messages = append(messages, m)
	}

	stream, err := s.chat.ChatStream(ctx, messages, llm.WithTemperature(DefaultChatTemperature))
	if err != nil {
		return nil, errors.ErrLLMUnavailable.WithCause(err)
	}
	logger.Debugw("chat stream started", "week_id", req.WeekID, "chunks", len(cc.Chunks), "provider", s.chat.Name())
	return stream, nil
}

func weekIDOf(req *ChatRequest) string {
	if req == nil {
		return ""
	}
	return req.WeekID
}
