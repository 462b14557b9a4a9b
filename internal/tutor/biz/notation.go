package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/internal/pkg/textutil"
	"github.com/kart-io/tutor-x/pkg/llm"
	"github.com/kart-io/tutor-x/pkg/utils/json"
)

// DefaultNotationBudget 送入模型的文本前缀长度上限（字符）。
const DefaultNotationBudget = 8000

// NotationEntry is one extracted symbol definition.
type NotationEntry struct {
	Term       string `json:"term"`
	Symbol     string `json:"symbol"`
	Definition string `json:"definition"`
}

const notationSystemPrompt = `You extract mathematical notation from economics course notes.
Return ONLY a JSON array. Each element is an object with the keys "term", "symbol" and "definition".
"symbol" is the notation exactly as written (LaTeX allowed), "term" is the concept it denotes,
"definition" is one sentence. Return [] if the notes define no notation.`

// NotationExtractor derives a week's notation dictionary with a chat model.
type NotationExtractor struct {
	chat   llm.ChatProvider
	budget int
}

// NewNotationExtractor creates an extractor. budget <= 0 uses DefaultNotationBudget.
func NewNotationExtractor(chat llm.ChatProvider, budget int) *NotationExtractor {
	if budget <= 0 {
		budget = DefaultNotationBudget
	}
	return &NotationExtractor{chat: chat, budget: budget}
}

// Extract never fails: model errors and malformed output yield an empty list.
func (e *NotationExtractor) Extract(ctx context.Context, weekTerm, text string) []NotationEntry {
	if strings.TrimSpace(text) == "" {
		return []NotationEntry{}
	}

	prompt := fmt.Sprintf("Course term: %s\n\nNOTES:\n%s", weekTerm, textutil.TruncateString(text, e.budget))
	resp, err := e.chat.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: notationSystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}, llm.WithTemperature(0))
	if err != nil {
		logger.Warnw("notation extraction failed", "error", err.Error())
		return []NotationEntry{}
	}
	return ParseNotation(resp)
}

// ParseNotation decodes the first array-shaped substring of a model response.
// Entries without a symbol are dropped and repeated symbols keep the first
// definition.
func ParseNotation(resp string) []NotationEntry {
	raw := textutil.ExtractJSONArray(resp)
	if raw == "" {
		logger.Warnw("notation response contains no JSON array", "length", len(resp))
		return []NotationEntry{}
	}

	var entries []NotationEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		logger.Warnw("notation response is not valid JSON", "error", err.Error())
		return []NotationEntry{}
	}

	out := make([]NotationEntry, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, en := range entries {
		en.Symbol = strings.TrimSpace(en.Symbol)
		if en.Symbol == "" {
			continue
		}
		if _, dup := seen[en.Symbol]; dup {
			continue
		}
		seen[en.Symbol] = struct{}{}
		en.Term = strings.TrimSpace(en.Term)
		en.Definition = strings.TrimSpace(en.Definition)
		out = append(out, en)
	}
	return out
}

func toNotationConfigs(weekID string, entries []NotationEntry) []*model.NotationConfig {
	out := make([]*model.NotationConfig, 0, len(entries))
	for _, en := range entries {
		out = append(out, &model.NotationConfig{
			WeekID:     weekID,
			Term:       en.Term,
			Symbol:     en.Symbol,
			Definition: en.Definition,
		})
	}
	return out
}
