package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/internal/tutor/metrics"
	"github.com/kart-io/tutor-x/internal/tutor/store"
)

// WatchdogConfig 卡住文档检测配置。
type WatchdogConfig struct {
	// Interval 扫描间隔
	Interval time.Duration
	// StuckAfter 停留在 uploading 超过该时长视为失败
	StuckAfter time.Duration
	// BatchSize 每次扫描最多处理的文档数
	BatchSize int
}

// Watchdog marks documents stuck in uploading as failed.
type Watchdog struct {
	documents store.DocumentStore
	events    store.EventBroker
	config    *WatchdogConfig
	metrics   *metrics.Metrics
	now       func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatchdog creates a Watchdog.
func NewWatchdog(documents store.DocumentStore, events store.EventBroker, config *WatchdogConfig, m *metrics.Metrics) *Watchdog {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	return &Watchdog{documents: documents, events: events, config: config, metrics: m, now: time.Now}
}

// Name returns the runnable name.
func (w *Watchdog) Name() string { return "ingest-watchdog" }

// Sweep marks every document older than StuckAfter that is still uploading.
func (w *Watchdog) Sweep(ctx context.Context) (int, error) {
	before := w.now().Add(-w.config.StuckAfter)
	docs, err := w.documents.ListStale(ctx, model.StatusUploading, before, w.config.BatchSize)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, d := range docs {
		reason := fmt.Sprintf("ingestion did not finish within %s", w.config.StuckAfter)
		if err := MarkFailed(ctx, w.documents, w.events, w.metrics, d.ID, reason); err != nil {
			logger.Warnw("watchdog failed to mark document", "document_id", d.ID, "error", err.Error())
			continue
		}
		marked++
	}
	if marked > 0 {
		logger.Infow("watchdog marked stuck documents failed", "count", marked)
	}
	return marked, nil
}

// Start sweeps in the background on every interval. It does not block.
func (w *Watchdog) Start(context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := w.Sweep(ctx); err != nil {
					logger.Warnw("watchdog sweep failed", "error", err.Error())
				}
			}
		}
	}()
	return nil
}

// Stop cancels the sweep loop and waits for it to exit.
func (w *Watchdog) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
