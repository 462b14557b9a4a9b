// Package nats provides NATS JetStream options for the ingestion queue.
package nats

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/tutor-x/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains NATS JetStream configuration.
type Options struct {
	// Enabled 为 false 时使用进程内队列。
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Name    string `json:"name" mapstructure:"name"`
	// Stream JetStream 流名称。
	Stream string `json:"stream" mapstructure:"stream"`
	// Subject 摄取事件主题。
	Subject string `json:"subject" mapstructure:"subject"`
	// Durable 持久消费者名称。
	Durable    string        `json:"durable" mapstructure:"durable"`
	MaxDeliver int           `json:"max-deliver" mapstructure:"max-deliver"`
	AckWait    time.Duration `json:"ack-wait" mapstructure:"ack-wait"`
	// MaxAge 消息保留时长。
	MaxAge        time.Duration `json:"max-age" mapstructure:"max-age"`
	ReconnectWait time.Duration `json:"reconnect-wait" mapstructure:"reconnect-wait"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		URL:           "nats://127.0.0.1:4222",
		Name:          "tutor",
		Stream:        "TUTOR_INGEST",
		Subject:       "tutor.ingest.document",
		Durable:       "tutor-ingest",
		MaxDeliver:    5,
		AckWait:       10 * time.Minute,
		MaxAge:        7 * 24 * time.Hour,
		ReconnectWait: 2 * time.Second,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "nats."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Deliver ingestion events through NATS JetStream.")
	fs.StringVar(&o.URL, p+"url", o.URL, "NATS server URL.")
	fs.StringVar(&o.Name, p+"name", o.Name, "NATS connection name.")
	fs.StringVar(&o.Stream, p+"stream", o.Stream, "JetStream stream name.")
	fs.StringVar(&o.Subject, p+"subject", o.Subject, "Subject for ingestion events.")
	fs.StringVar(&o.Durable, p+"durable", o.Durable, "Durable consumer name.")
	fs.IntVar(&o.MaxDeliver, p+"max-deliver", o.MaxDeliver, "Maximum delivery attempts per ingestion event.")
	fs.DurationVar(&o.AckWait, p+"ack-wait", o.AckWait, "Time allowed to process an event before redelivery.")
	fs.DurationVar(&o.MaxAge, p+"max-age", o.MaxAge, "Stream message retention.")
	fs.DurationVar(&o.ReconnectWait, p+"reconnect-wait", o.ReconnectWait, "Delay between reconnect attempts.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.URL == "" {
		errs = append(errs, fmt.Errorf("nats url is required"))
	}
	if o.Stream == "" || o.Subject == "" || o.Durable == "" {
		errs = append(errs, fmt.Errorf("nats stream, subject and durable are required"))
	}
	if o.MaxDeliver <= 0 {
		errs = append(errs, fmt.Errorf("nats max-deliver must be positive"))
	}
	if o.AckWait <= 0 {
		errs = append(errs, fmt.Errorf("nats ack-wait must be positive"))
	}
	return errs
}
