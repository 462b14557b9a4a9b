// Package nats connects to NATS and provisions the JetStream stream and
// durable consumer used for ingestion events.
package nats

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	options "github.com/kart-io/tutor-x/pkg/options/nats"
)

// Client bundles a NATS connection with its JetStream context.
type Client struct {
	conn *natsgo.Conn
	js   jetstream.JetStream
	opts *options.Options
}

// New connects to NATS and opens a JetStream context.
func New(opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("nats options cannot be nil")
	}

	nc, err := natsgo.Connect(opts.URL,
		natsgo.Name(opts.Name),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(opts.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Warnw("NATS disconnected", "error", err.Error())
			}
		}),
		natsgo.ReconnectHandler(func(c *natsgo.Conn) {
			logger.Infow("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats %s: %w", opts.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	return &Client{conn: nc, js: js, opts: opts}, nil
}

// JetStream returns the JetStream context.
func (c *Client) JetStream() jetstream.JetStream { return c.js }

// EnsureConsumer creates or updates the stream and the durable pull consumer.
func (c *Client) EnsureConsumer(ctx context.Context) (jetstream.Consumer, error) {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      c.opts.Stream,
		Subjects:  []string{c.opts.Subject},
		Retention: jetstream.WorkQueuePolicy,
		MaxAge:    c.opts.MaxAge,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure stream %s: %w", c.opts.Stream, err)
	}

	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.opts.Stream, jetstream.ConsumerConfig{
		Durable:       c.opts.Durable,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.opts.AckWait,
		MaxDeliver:    c.opts.MaxDeliver,
		FilterSubject: c.opts.Subject,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure consumer %s: %w", c.opts.Durable, err)
	}
	return consumer, nil
}

// Close drains the connection.
func (c *Client) Close() error {
	return c.conn.Drain()
}
