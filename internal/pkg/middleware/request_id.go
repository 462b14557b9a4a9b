package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/tutor-x/internal/pkg/httputils"
	logctx "github.com/kart-io/tutor-x/pkg/infra/logger"
	"github.com/kart-io/tutor-x/pkg/utils/id"
)

// HeaderXRequestID is the header carrying the request id.
const HeaderXRequestID = "X-Request-ID"

// RequestID reuses the caller's X-Request-ID or generates a ULID, and
// echoes it in the response. The id is also attached to the request context
// for logging.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderXRequestID)
		if rid == "" || len(rid) > 128 {
			rid = id.NewULID()
		}
		c.Set(httputils.RequestIDKey, rid)
		c.Header(HeaderXRequestID, rid)
		c.Request = c.Request.WithContext(logctx.WithRequestID(c.Request.Context(), rid))
		c.Next()
	}
}
