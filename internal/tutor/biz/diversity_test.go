package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/tutor-x/internal/model"
)

func ids(chunks []*ScoredChunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.ID)
	}
	return out
}

func TestSelectDiverse_CoversEveryType(t *testing.T) {
	candidates := []*ScoredChunk{
		chunk("l1", model.SourceLecture, 0.95),
		chunk("l2", model.SourceLecture, 0.94),
		chunk("l3", model.SourceLecture, 0.93),
		chunk("l4", model.SourceLecture, 0.92),
		chunk("l5", model.SourceLecture, 0.91),
		chunk("s1", model.SourceSupervision, 0.80),
		chunk("t1", model.SourceTextbook, 0.70),
	}

	got := SelectDiverse(candidates, DefaultSelectTarget)
	assert.Equal(t, []string{"l1", "t1", "s1", "l2", "l3"}, ids(got))
}

func TestSelectDiverse_FillsByRank(t *testing.T) {
	candidates := []*ScoredChunk{
		chunk("t1", model.SourceTextbook, 0.9),
		chunk("t2", model.SourceTextbook, 0.8),
		chunk("t3", model.SourceTextbook, 0.7),
	}
	got := SelectDiverse(candidates, 5)
	assert.Equal(t, []string{"t1", "t2", "t3"}, ids(got))
}

func TestSelectDiverse_Bounds(t *testing.T) {
	assert.Empty(t, SelectDiverse(nil, 5))
	assert.Empty(t, SelectDiverse([]*ScoredChunk{chunk("a", model.SourceLecture, 1)}, 0))

	candidates := []*ScoredChunk{
		chunk("s1", model.SourceSupervision, 0.9),
		chunk("l1", model.SourceLecture, 0.8),
	}
	got := SelectDiverse(candidates, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "l1", got[0].ID)
}

func TestSelectDiverse_Idempotent(t *testing.T) {
	candidates := []*ScoredChunk{
		chunk("l1", model.SourceLecture, 0.95),
		chunk("l2", model.SourceLecture, 0.9),
		chunk("t1", model.SourceTextbook, 0.85),
		chunk("l3", model.SourceLecture, 0.8),
		chunk("s1", model.SourceSupervision, 0.75),
		chunk("t2", model.SourceTextbook, 0.7),
		chunk("s2", model.SourceSupervision, 0.6),
	}

	first := SelectDiverse(candidates, 5)
	second := SelectDiverse(first, 5)
	assert.ElementsMatch(t, ids(first), ids(second))
}
