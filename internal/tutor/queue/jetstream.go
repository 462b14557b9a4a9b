package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/internal/tutor/biz"
	"github.com/kart-io/tutor-x/pkg/infra/pool"
	"github.com/kart-io/tutor-x/pkg/infra/server"
	"github.com/kart-io/tutor-x/pkg/utils/json"
	"github.com/kart-io/tutor-x/pkg/utils/validator"
)

// JetStreamPublisher publishes ingestion events to a JetStream subject.
type JetStreamPublisher struct {
	js      jetstream.JetStream
	subject string
}

var _ biz.IngestPublisher = (*JetStreamPublisher)(nil)

// NewJetStreamPublisher creates a publisher for subject.
func NewJetStreamPublisher(js jetstream.JetStream, subject string) *JetStreamPublisher {
	return &JetStreamPublisher{js: js, subject: subject}
}

// Publish returns once the stream has stored the event.
func (p *JetStreamPublisher) Publish(ctx context.Context, ev *model.IngestEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal ingest event: %w", err)
	}
	ack, err := p.js.Publish(ctx, p.subject, data)
	if err != nil {
		return fmt.Errorf("publish ingest event: %w", err)
	}
	logger.Debugw("ingest event published", "document_id", ev.DocumentID, "stream", ack.Stream, "seq", ack.Sequence)
	return nil
}

// ConsumerConfig JetStream 消费配置。
type ConsumerConfig struct {
	// MaxDeliver 与 consumer 配置一致，用于判断最后一次投递
	MaxDeliver int
	// BatchSize 单次 Fetch 的消息数
	BatchSize int
	FetchWait time.Duration
	// NakDelay 失败后的重投延迟
	NakDelay time.Duration
}

// DefaultConsumerConfig returns the default consumer configuration.
func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		MaxDeliver: 5,
		BatchSize:  4,
		FetchWait:  5 * time.Second,
		NakDelay:   30 * time.Second,
	}
}

// Consumer pulls ingestion events and runs them on a worker pool.
type Consumer struct {
	consumer  jetstream.Consumer
	handler   EventHandler
	pool      *pool.Pool
	validator *validator.Validator
	config    *ConsumerConfig

	cancel context.CancelFunc
	loop   sync.WaitGroup
	tasks  sync.WaitGroup
}

var _ server.Runnable = (*Consumer)(nil)

// NewConsumer creates a Consumer. The pool bounds concurrent ingestions.
func NewConsumer(consumer jetstream.Consumer, handler EventHandler, p *pool.Pool, config *ConsumerConfig) *Consumer {
	if config == nil {
		config = DefaultConsumerConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 1
	}
	if config.FetchWait <= 0 {
		config.FetchWait = 5 * time.Second
	}
	return &Consumer{
		consumer:  consumer,
		handler:   handler,
		pool:      p,
		validator: validator.New(),
		config:    config,
	}
}

// Name implements server.Runnable.
func (c *Consumer) Name() string { return "ingest-consumer" }

// Start begins fetching in the background.
func (c *Consumer) Start(context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.loop.Add(1)
	go func() {
		defer c.loop.Done()
		c.run(ctx)
	}()
	logger.Infow("ingest consumer started", "batch", c.config.BatchSize, "max_deliver", c.config.MaxDeliver)
	return nil
}

func (c *Consumer) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		batch, err := c.consumer.Fetch(c.config.BatchSize, jetstream.FetchMaxWait(c.config.FetchWait))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Debugw("fetch ingest events", "error", err.Error())
			continue
		}
		for msg := range batch.Messages() {
			c.dispatch(ctx, msg)
		}
		if err := batch.Error(); err != nil && ctx.Err() == nil {
			logger.Debugw("fetch batch ended", "error", err.Error())
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg jetstream.Msg) {
	if ctx.Err() != nil {
		_ = msg.Nak()
		return
	}
	c.tasks.Add(1)
	err := c.pool.Submit(func() {
		defer c.tasks.Done()
		c.handleMessage(ctx, msg)
	})
	if err != nil {
		c.tasks.Done()
		logger.Warnw("worker pool rejected ingest event", "error", err.Error())
		_ = msg.Nak()
	}
}

// handleMessage acks on success, naks for redelivery on failure and
// terminates messages that can never be processed.
func (c *Consumer) handleMessage(ctx context.Context, msg jetstream.Msg) {
	var ev model.IngestEvent
	if err := json.Unmarshal(msg.Data(), &ev); err != nil {
		logger.Warnw("malformed ingest event", "error", err.Error())
		_ = msg.TermWithReason("malformed ingest event")
		return
	}
	if err := c.validator.Validate(&ev); err != nil {
		logger.Warnw("invalid ingest event", "error", err.Error())
		_ = msg.TermWithReason("invalid ingest event")
		return
	}

	lastAttempt := false
	if meta, err := msg.Metadata(); err == nil && c.config.MaxDeliver > 0 {
		lastAttempt = meta.NumDelivered >= uint64(c.config.MaxDeliver)
	}

	if err := c.handler.Handle(ctx, &ev, lastAttempt); err != nil {
		if c.config.NakDelay > 0 && ctx.Err() == nil {
			_ = msg.NakWithDelay(c.config.NakDelay)
		} else {
			_ = msg.Nak()
		}
		return
	}
	if err := msg.Ack(); err != nil {
		logger.Warnw("ack ingest event", "document_id", ev.DocumentID, "error", err.Error())
	}
}

// Stop stops fetching and waits for in-flight ingestions.
func (c *Consumer) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	done := make(chan struct{})
	go func() {
		c.loop.Wait()
		c.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
