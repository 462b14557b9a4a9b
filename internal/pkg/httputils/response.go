// Package httputils provides HTTP utility functions.
package httputils

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/tutor-x/pkg/utils/errors"
	"github.com/kart-io/tutor-x/pkg/utils/response"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// WriteResponse writes the response to the client.
// It handles both success and error cases, ensuring consistent response format.
// On error, a non-nil data carries details such as field validation errors.
func WriteResponse(c *gin.Context, err error, data any) {
	var resp *response.Response
	if err != nil {
		resp = response.Err(errors.FromError(err))
		resp.Data = data
	} else {
		resp = response.Success(data)
	}
	resp.WithRequestID(c.GetString(RequestIDKey))
	c.JSON(resp.HTTPStatus(), resp)
}
