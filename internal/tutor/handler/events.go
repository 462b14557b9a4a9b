package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/tutor-x/internal/pkg/httputils"
)

// WeekEvents streams processed/failed status changes of a week's documents
// as server-sent events until the client disconnects.
func (h *TutorHandler) WeekEvents(c *gin.Context) {
	weekID := c.Param("id")
	if _, err := h.catalog.GetWeek(c.Request.Context(), weekID); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	ch, err := h.events.Subscribe(c.Request.Context(), weekID)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	ticker := time.NewTicker(h.config.KeepAlive)
	defer ticker.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("status", ev)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}
