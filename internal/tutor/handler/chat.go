package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/tutor-x/internal/pkg/httputils"
	"github.com/kart-io/tutor-x/internal/tutor/biz"
	logctx "github.com/kart-io/tutor-x/pkg/infra/logger"
	"github.com/kart-io/tutor-x/pkg/llm"
	"github.com/kart-io/tutor-x/pkg/utils/errors"
)

// ChatBody 对话请求体。
type ChatBody struct {
	Messages []llm.Message `json:"messages" validate:"required,min=1"`
	WeekID   string        `json:"weekId" validate:"required"`
}

// Chat streams the tutor's answer as chunked text/plain. Errors raised
// before the first token are returned as a JSON envelope.
func (h *TutorHandler) Chat(c *gin.Context) {
	var body ChatBody
	if !h.bind(c, &body) {
		return
	}

	// 超时只约束检索阶段；流开始后由客户端断开来取消
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	timer := time.AfterFunc(h.config.ChatTimeout, cancel)

	stream, err := h.chat.Chat(ctx, &biz.ChatRequest{Messages: body.Messages, WeekID: body.WeekID})
	timedOut := !timer.Stop()
	if err != nil {
		if timedOut && c.Request.Context().Err() == nil {
			err = errors.ErrTutorChatTimeout.WithCause(err)
		}
		httputils.WriteResponse(c, err, nil)
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-stream
		if !ok {
			return false
		}
		if chunk.Err != nil {
			logctx.FromContext(c.Request.Context()).Warnw("chat stream interrupted", "week_id", body.WeekID, "error", chunk.Err.Error())
			return false
		}
		if _, err := io.WriteString(w, chunk.Content); err != nil {
			return false
		}
		return true
	})
}
