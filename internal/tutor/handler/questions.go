package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/tutor-x/internal/pkg/httputils"
)

// QuestionsBody 练习题请求体。
type QuestionsBody struct {
	WeekID string `json:"weekId" validate:"required"`
}

// Questions generates practice questions for a week.
func (h *TutorHandler) Questions(c *gin.Context) {
	var body QuestionsBody
	if !h.bind(c, &body) {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.QuestionTimeout)
	defer cancel()

	set, err := h.questions.Generate(ctx, body.WeekID)
	httputils.WriteResponse(c, err, set)
}
