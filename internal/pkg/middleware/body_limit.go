package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/tutor-x/internal/pkg/httputils"
	"github.com/kart-io/tutor-x/pkg/utils/errors"
)

// BodyLimit rejects requests whose declared length exceeds maxSize and caps
// the bytes read from the body.
func BodyLimit(maxSize int64) gin.HandlerFunc {
	if maxSize <= 0 {
		maxSize = 4 << 20
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			httputils.WriteResponse(c, errors.ErrRequestTooLarge, nil)
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		}
		c.Next()
	}
}
