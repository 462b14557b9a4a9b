package biz

import (
	"context"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/internal/tutor/store"
)

// MemoryBroker 进程内状态事件分发，单实例部署或测试使用。
// 订阅者缓冲区满时丢弃事件。
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[chan *model.StatusChangeEvent]struct{}
	buffer int
}

var _ store.EventBroker = (*MemoryBroker)(nil)

// NewMemoryBroker creates a broker with the given per-subscriber buffer.
func NewMemoryBroker(buffer int) *MemoryBroker {
	if buffer <= 0 {
		buffer = 16
	}
	return &MemoryBroker{
		subs:   make(map[string]map[chan *model.StatusChangeEvent]struct{}),
		buffer: buffer,
	}
}

// Publish delivers the event to the week's current subscribers.
func (b *MemoryBroker) Publish(_ context.Context, ev *model.StatusChangeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[ev.WeekID] {
		select {
		case ch <- ev:
		default:
			logger.Warnw("status subscriber is slow, dropping event", "week_id", ev.WeekID, "document_id", ev.DocumentID)
		}
	}
	return nil
}

// Subscribe registers a listener until ctx is cancelled.
func (b *MemoryBroker) Subscribe(ctx context.Context, weekID string) (<-chan *model.StatusChangeEvent, error) {
	ch := make(chan *model.StatusChangeEvent, b.buffer)

	b.mu.Lock()
	if b.subs[weekID] == nil {
		b.subs[weekID] = make(map[chan *model.StatusChangeEvent]struct{})
	}
	b.subs[weekID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[weekID], ch)
		if len(b.subs[weekID]) == 0 {
			delete(b.subs, weekID)
		}
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}
