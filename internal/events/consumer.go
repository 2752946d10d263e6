// ABOUTME: Kafka consumer that decodes inbound envelopes and hands them to a handler.
// ABOUTME: Offsets are committed after handling regardless of outcome; there is no redelivery.
package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/harperreed/bloom/internal/metrics"
)

// Handler processes one inbound event.
type Handler func(ctx context.Context, e Event) error

// ConsumerConfig configures the inbound consumer.
type ConsumerConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	PollTimeout time.Duration
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads inbound events from a Kafka consumer group.
type Consumer struct {
	topic  string
	reader messageReader
	log    *slog.Logger
	poll   time.Duration
}

// NewConsumer builds a consumer for cfg.
func NewConsumer(cfg ConsumerConfig, log *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("inbound topic must not be empty")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("consumer group must not be empty")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newConsumerWithReader(cfg.Topic, reader, cfg.PollTimeout, log), nil
}

func newConsumerWithReader(topic string, r messageReader, poll time.Duration, log *slog.Logger) *Consumer {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Consumer{
		topic:  topic,
		reader: r,
		log:    log.With(slog.String("component", "event_consumer")),
		poll:   poll,
	}
}

// Close shuts down the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Run consumes until ctx is cancelled or the reader is closed.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	c.log.Info("consumer_started", slog.String("topic", c.topic))
	defer c.log.Info("consumer_stopped")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.poll)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case errors.Is(err, context.Canceled) && ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, kafka.ErrGroupClosed):
				return nil
			}
			c.log.Error("consumer_fetch_error", slog.Any("err", err))
			continue
		}

		c.handle(ctx, msg, h)

		commitCtx, commitCancel := context.WithTimeout(ctx, c.poll)
		if err := c.reader.CommitMessages(commitCtx, msg); err != nil && ctx.Err() == nil {
			c.log.Error("consumer_commit_error", slog.Any("err", err), slog.Int64("offset", msg.Offset))
		}
		commitCancel()
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, h Handler) {
	e, err := Decode(msg.Value)
	if err != nil {
		c.log.Warn("consumer_decode_error", slog.Any("err", err), slog.Int64("offset", msg.Offset))
		metrics.EventsConsumed.WithLabelValues("invalid").Inc()
		return
	}
	metrics.EventsConsumed.WithLabelValues(string(e.Type)).Inc()

	err = h(ctx, e)
	switch {
	case errors.Is(err, ErrUnroutable):
		// Outbound notifications share the topic with job triggers.
		c.log.Debug("event_skipped", slog.String("type", string(e.Type)), slog.String("id", e.ID))
	case err != nil:
		c.log.Error("event_handler_failed",
			slog.String("type", string(e.Type)),
			slog.String("id", e.ID),
			slog.Any("err", err),
		)
	}
}
