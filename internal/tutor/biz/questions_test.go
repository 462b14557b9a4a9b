package biz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/tutor-x/internal/model"
	errno "github.com/kart-io/tutor-x/pkg/utils/errors"
)

func TestQuestionContext(t *testing.T) {
	chunks := []*ScoredChunk{
		{SourceType: model.SourceLecture, Content: "Slutsky equation."},
		{SourceType: model.SourceSupervision, Content: "Derive the Hicksian demand."},
	}
	assert.Equal(t, "[Lecture] Slutsky equation.\n\n[Supervision] Derive the Hicksian demand.", QuestionContext(chunks, 1000))
	assert.Equal(t, "[Lecture]", QuestionContext(chunks, 9))
}

func TestParseQuestions(t *testing.T) {
	set, err := ParseQuestions("Sure!\n" + `{"questions":[{"id":1,"type":"essay","text":"Evaluate...","hint":"Consider"},` +
		`{"id":"q2","type":"quantitative","text":"Derive...","hint":"Use FOCs"}]}` + "\nGood luck.")
	require.NoError(t, err)
	require.Len(t, set.Questions, 2)
	assert.Equal(t, "essay", set.Questions[0].Type)
	assert.Equal(t, "q2", set.Questions[1].ID)

	empty, err := ParseQuestions("no json here")
	require.NoError(t, err)
	assert.NotNil(t, empty.Questions)
	assert.Empty(t, empty.Questions)

	_, err = ParseQuestions("{questions: broken}")
	assert.Error(t, err)
}

func TestQuestionService_Generate(t *testing.T) {
	env := newPipelineEnv(t, twoSectionNotes)
	_, err := env.pipeline.Run(context.Background(), env.event())
	require.NoError(t, err)

	examiner := &mockChat{resp: `{"questions":[{"id":1,"type":"essay","text":"Assess the claim.","hint":"Use elasticity."}]}`}
	svc := NewQuestionService(env.factory, examiner, nil)

	set, err := svc.Generate(context.Background(), env.week.ID)
	require.NoError(t, err)
	require.Len(t, set.Questions, 1)

	require.Len(t, examiner.messages, 2)
	assert.Contains(t, examiner.messages[0].Content, "2 short-essay questions")
	prompt := examiner.messages[1].Content
	assert.True(t, strings.HasPrefix(prompt, "CONTEXT:\n[Lecture] # Demand"))
	assert.Contains(t, prompt, "\n\n[Lecture] # Supply")
}

func TestQuestionService_Errors(t *testing.T) {
	env := newPipelineEnv(t, twoSectionNotes)
	ctx := context.Background()

	svc := NewQuestionService(env.factory, &mockChat{resp: "{not json}"}, nil)
	_, err := svc.Generate(ctx, env.week.ID)
	assert.ErrorIs(t, err, errno.ErrTutorGenerationFailed)

	_, err = svc.Generate(ctx, "missing")
	assert.ErrorIs(t, err, errno.ErrTutorWeekNotFound)

	_, err = svc.Generate(ctx, "")
	assert.ErrorIs(t, err, errno.ErrTutorInvalidChat)

	svc = NewQuestionService(env.factory, &mockChat{err: errors.New("timeout")}, nil)
	_, err = svc.Generate(ctx, env.week.ID)
	assert.ErrorIs(t, err, errno.ErrLLMUnavailable)
}
