package biz

import (
	"fmt"
	"strings"

	"github.com/kart-io/tutor-x/internal/model"
)

const (
	chunkSeparator = "\n\n---\n\n"

	// NoNotationMarker is rendered when a week has no notation.
	NoNotationMarker = "None defined."
	// InsufficientContextMarker replaces the sources when nothing was retrieved.
	InsufficientContextMarker = "No course material matched this question. The notes are insufficient to answer it."
)

// Assemble renders the selected chunks and the week's notation into the
// context block embedded in the system prompt.
func Assemble(chunks []*ScoredChunk, notation []*model.NotationConfig) string {
	var b strings.Builder

	b.WriteString("NOTATION:\n")
	written := 0
	for _, n := range notation {
		if n == nil || n.Symbol == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", n.Symbol, n.Definition)
		written++
	}
	if written == 0 {
		b.WriteString(NoNotationMarker + "\n")
	}

	b.WriteString("\nSOURCES:\n")
	if len(chunks) == 0 {
		b.WriteString(InsufficientContextMarker)
		return b.String()
	}

	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, fmt.Sprintf("[Source: %s | Math density: %.2f]\n%s",
			c.SourceType, c.Density, strings.TrimRight(c.Content, "\n")))
	}
	b.WriteString(strings.Join(parts, chunkSeparator))
	return b.String()
}

const systemPromptTemplate = `You are a rigid Cambridge Economics Supervisor.

You must:
- Use standard LaTeX notation for all mathematics (e.g. $ x^2 $, $$ \int f(x) dx $$)
- Use only the symbols listed under NOTATION when they apply
- Only reason using the provided context
- Never introduce variables, assumptions, or steps not present in the context
- If the context is insufficient, state explicitly that the notes do not justify the claim

CONTEXT:
%s
`

// SystemPrompt wraps an assembled context in the supervisor instruction.
func SystemPrompt(context string) string {
	return fmt.Sprintf(systemPromptTemplate, context)
}
