package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/tutor-x/internal/model"
)

func TestAssemble(t *testing.T) {
	chunks := []*ScoredChunk{
		{ID: "a", SourceType: model.SourceLecture, Density: 0.25, Content: "Demand falls as price rises.\n"},
		{ID: "b", SourceType: model.SourceTextbook, Density: 1, Content: "$\\epsilon = \\frac{dQ}{dP}$"},
	}
	notation := []*model.NotationConfig{
		{Symbol: `\epsilon`, Definition: "price elasticity of demand"},
		{Symbol: "", Definition: "ignored"},
	}

	out := Assemble(chunks, notation)
	assert.True(t, strings.HasPrefix(out, "NOTATION:\n- \\epsilon: price elasticity of demand\n"))
	assert.Contains(t, out, "[Source: Lecture | Math density: 0.25]\nDemand falls as price rises.")
	assert.Contains(t, out, "[Source: Textbook | Math density: 1.00]\n$\\epsilon")
	assert.Equal(t, 1, strings.Count(out, chunkSeparator))
	assert.NotContains(t, out, "ignored")
	assert.NotContains(t, out, InsufficientContextMarker)
}

func TestAssemble_Empty(t *testing.T) {
	out := Assemble(nil, nil)
	assert.Equal(t, "NOTATION:\n"+NoNotationMarker+"\n\nSOURCES:\n"+InsufficientContextMarker, out)
}

func TestSystemPrompt(t *testing.T) {
	p := SystemPrompt("CTX-BLOCK")
	assert.Contains(t, p, "Cambridge Economics Supervisor")
	assert.True(t, strings.HasSuffix(p, "CONTEXT:\nCTX-BLOCK\n"))
}
