package queue

import (
	"context"

	"github.com/kart-io/tutor-x/internal/model"
)

// EventHandler processes one ingestion event. lastAttempt is true when the
// queue will not deliver the event again. A nil return acknowledges it.
type EventHandler interface {
	Handle(ctx context.Context, ev *model.IngestEvent, lastAttempt bool) error
}
