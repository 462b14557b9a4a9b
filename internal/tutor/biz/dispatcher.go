package biz

import (
	"context"
	"errors"
	"time"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/internal/tutor/metrics"
	"github.com/kart-io/tutor-x/internal/tutor/store"
	logctx "github.com/kart-io/tutor-x/pkg/infra/logger"
)

// IngestHandler 执行流水线，并在重试无望时把文档标记为 failed。
// 队列消费者（NATS 或进程内池）都通过它处理事件。
type IngestHandler struct {
	pipeline  *Pipeline
	documents store.DocumentStore
	events    store.EventBroker
	metrics   *metrics.Metrics
}

// NewIngestHandler creates an IngestHandler.
func NewIngestHandler(pipeline *Pipeline, documents store.DocumentStore, events store.EventBroker, m *metrics.Metrics) *IngestHandler {
	return &IngestHandler{pipeline: pipeline, documents: documents, events: events, metrics: m}
}

// Handle runs the pipeline for ev. lastAttempt tells the handler the queue
// will not redeliver, so a retryable failure becomes terminal. The returned
// error is nil once the event needs no further delivery.
func (h *IngestHandler) Handle(ctx context.Context, ev *model.IngestEvent, lastAttempt bool) error {
	ctx = logctx.WithDocumentID(ctx, ev.DocumentID)
	log := logctx.FromContext(ctx)

	res, err := h.pipeline.Run(ctx, ev)
	if err == nil {
		if res.Skipped {
			log.Debugw("ingest event for processed document acknowledged")
		}
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	terminal := IsTerminal(err)
	if !terminal && !lastAttempt {
		log.Warnw("ingestion failed, awaiting redelivery", "error", err.Error())
		return err
	}

	if errors.Is(err, ErrDocumentNotFound) {
		log.Warnw("dropping ingest event for unknown document")
		return nil
	}
	if ferr := MarkFailed(ctx, h.documents, h.events, h.metrics, ev.DocumentID, err.Error()); ferr != nil {
		log.Errorw("failed to mark document failed", "error", ferr.Error())
		return ferr
	}
	log.Errorw("document ingestion failed", "terminal", terminal, "error", err.Error())
	return nil
}

// MarkFailed 将文档置为 failed 并发布状态事件。已 processed 的文档保持不变。
func MarkFailed(ctx context.Context, documents store.DocumentStore, events store.EventBroker, m *metrics.Metrics, documentID, reason string) error {
	doc, err := documents.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Status != model.StatusUploading {
		return nil
	}
	changed, err := documents.TransitionStatus(ctx, documentID, model.StatusUploading, model.StatusFailed, 0, reason)
	if err != nil {
		return err
	}
	if !changed {
		logctx.FromContext(ctx).Debugw("document left uploading before it could be failed", "document_id", documentID)
		return nil
	}
	m.RecordDocumentStatus(string(model.StatusFailed))

	if events != nil {
		ev := &model.StatusChangeEvent{
			DocumentID: documentID,
			WeekID:     doc.WeekID,
			Status:     model.StatusFailed,
			Error:      reason,
			At:         time.Now().UTC(),
		}
		if err := events.Publish(ctx, ev); err != nil {
			logctx.FromContext(ctx).Warnw("failed to publish status event", "document_id", documentID, "error", err.Error())
		}
	}
	return nil
}
