package store

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/pkg/utils/json"
)

// RedisEventBroker 通过 Redis Pub/Sub 在多个实例之间分发状态事件。
type RedisEventBroker struct {
	redis         goredis.UniversalClient
	channelPrefix string
	buffer        int
}

var _ EventBroker = (*RedisEventBroker)(nil)

// NewRedisEventBroker creates a broker publishing on "<prefix><weekID>".
func NewRedisEventBroker(redis goredis.UniversalClient, channelPrefix string) *RedisEventBroker {
	if channelPrefix == "" {
		channelPrefix = "tutor:events:week:"
	}
	return &RedisEventBroker{redis: redis, channelPrefix: channelPrefix, buffer: 16}
}

// Publish sends the event to the week's channel.
func (b *RedisEventBroker) Publish(ctx context.Context, event *model.StatusChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, b.channelPrefix+event.WeekID, data).Err()
}

// Subscribe listens on the week's channel until ctx is cancelled.
func (b *RedisEventBroker) Subscribe(ctx context.Context, weekID string) (<-chan *model.StatusChangeEvent, error) {
	sub := b.redis.Subscribe(ctx, b.channelPrefix+weekID)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe week %s: %w", weekID, err)
	}

	out := make(chan *model.StatusChangeEvent, b.buffer)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev model.StatusChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Warnw("dropping malformed status event", "channel", msg.Channel, "error", err.Error())
					continue
				}
				select {
				case out <- &ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
