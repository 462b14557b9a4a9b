package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/tutor-x/internal/pkg/httputils"
	"github.com/kart-io/tutor-x/pkg/utils/errors"
)

// Recovery turns a handler panic into an internal error response. The stack
// goes to the log only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Errorw("panic recovered",
				"panic", r,
				"stack_trace", string(debug.Stack()),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"request_id", c.GetString(httputils.RequestIDKey),
			)
			// 流式响应已经开始写出时无法再返回 JSON
			if c.Writer.Written() {
				c.Abort()
				return
			}
			httputils.WriteResponse(c, errors.ErrInternal.WithMessage(fmt.Sprintf("panic: %v", r)), nil)
			c.Abort()
		}()
		c.Next()
	}
}
