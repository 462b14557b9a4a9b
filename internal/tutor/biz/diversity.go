package biz

import "github.com/kart-io/tutor-x/internal/model"

// DefaultSelectTarget 最终进入上下文的分块数。
const DefaultSelectTarget = 5

var sourcePriority = []model.SourceType{
	model.SourceLecture,
	model.SourceTextbook,
	model.SourceSupervision,
}

// SelectDiverse picks up to target chunks from candidates, which must be in
// rank order. The best-ranked chunk of each source type is taken first, in
// the order Lecture, Textbook, Supervision; remaining slots are filled by
// rank. The result is in selection order.
func SelectDiverse(candidates []*ScoredChunk, target int) []*ScoredChunk {
	if target <= 0 || len(candidates) == 0 {
		return []*ScoredChunk{}
	}

	selected := make([]*ScoredChunk, 0, min(target, len(candidates)))
	taken := make([]bool, len(candidates))

	for _, st := range sourcePriority {
		if len(selected) == target {
			break
		}
		for i, c := range candidates {
			if !taken[i] && c.SourceType == st {
				taken[i] = true
				selected = append(selected, c)
				break
			}
		}
	}

	for i, c := range candidates {
		if len(selected) == target {
			break
		}
		if !taken[i] {
			taken[i] = true
			selected = append(selected, c)
		}
	}
	return selected
}
