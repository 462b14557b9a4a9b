package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/internal/tutor/biz"
	"github.com/kart-io/tutor-x/pkg/infra/pool"
	"github.com/kart-io/tutor-x/pkg/infra/server"
)

// LocalConfig 进程内队列配置。
type LocalConfig struct {
	// MaxAttempts 每个事件的最大执行次数
	MaxAttempts int
	// Backoff 第 n 次失败后等待 n*Backoff
	Backoff time.Duration
}

// Local runs ingestion events on an in-process worker pool. Events are lost
// on restart; the watchdog fails documents left in uploading.
type Local struct {
	handler EventHandler
	pool    *pool.Pool
	config  *LocalConfig

	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup
}

var (
	_ biz.IngestPublisher = (*Local)(nil)
	_ server.Runnable     = (*Local)(nil)
)

// NewLocal creates a Local queue.
func NewLocal(handler EventHandler, p *pool.Pool, config *LocalConfig) *Local {
	if config == nil {
		config = &LocalConfig{MaxAttempts: 3, Backoff: 5 * time.Second}
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Local{handler: handler, pool: p, config: config, ctx: ctx, cancel: cancel}
}

// Name implements server.Runnable.
func (l *Local) Name() string { return "ingest-local" }

// Start implements server.Runnable.
func (l *Local) Start(context.Context) error { return nil }

// Publish schedules the event and returns without waiting for it.
func (l *Local) Publish(_ context.Context, ev *model.IngestEvent) error {
	if l.ctx.Err() != nil {
		return fmt.Errorf("ingest queue is stopped")
	}
	event := *ev
	l.tasks.Add(1)
	if err := l.pool.Submit(func() {
		defer l.tasks.Done()
		l.run(&event)
	}); err != nil {
		l.tasks.Done()
		return fmt.Errorf("schedule ingestion: %w", err)
	}
	return nil
}

func (l *Local) run(ev *model.IngestEvent) {
	for attempt := 1; attempt <= l.config.MaxAttempts; attempt++ {
		last := attempt == l.config.MaxAttempts
		err := l.handler.Handle(l.ctx, ev, last)
		if err == nil {
			return
		}
		if last || l.ctx.Err() != nil {
			return
		}
		logger.Debugw("retrying ingestion", "document_id", ev.DocumentID, "attempt", attempt)
		select {
		case <-l.ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * l.config.Backoff):
		}
	}
}

// Stop cancels pending retries and waits for running ingestions.
func (l *Local) Stop(ctx context.Context) error {
	l.cancel()
	done := make(chan struct{})
	go func() {
		l.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
