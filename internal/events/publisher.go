// ABOUTME: Outbound event publishers: Kafka writer, log-only fallback, and in-memory recorder.
// ABOUTME: Publishing is at-most-once; callers log failures and move on.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/harperreed/bloom/internal/metrics"
)

// Publisher sends events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Acks    int
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON keyed by Fitbit user id.
type KafkaPublisher struct {
	topic  string
	writer messageWriter
	log    *slog.Logger
}

// NewKafkaPublisher builds a publisher for cfg.
func NewKafkaPublisher(cfg KafkaConfig, log *slog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("outbound topic must not be empty")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		RequiredAcks:           kafka.RequiredAcks(cfg.Acks),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: false,
	}
	return newKafkaPublisherWithWriter(cfg.Topic, w, log), nil
}

func newKafkaPublisherWithWriter(topic string, w messageWriter, log *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		topic:  topic,
		writer: w,
		log:    log.With(slog.String("component", "event_publisher")),
	}
}

// Publish writes one event.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(string(e.Type), "error").Inc()
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.Detail.FitbitUserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
			{Key: "source", Value: []byte(e.Source)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.EventsPublished.WithLabelValues(string(e.Type), "error").Inc()
		return fmt.Errorf("publish %s to %s: %w", e.Type, p.topic, err)
	}
	metrics.EventsPublished.WithLabelValues(string(e.Type), "ok").Inc()
	p.log.Debug("event_published", slog.String("type", string(e.Type)), slog.String("id", e.ID))
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher logs events instead of sending them. Used when no brokers are configured.
type LogPublisher struct {
	log *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With(slog.String("component", "event_publisher"))}
}

// Publish logs e.
func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	metrics.EventsPublished.WithLabelValues(string(e.Type), "logged").Inc()
	p.log.Info("event_published",
		slog.String("type", string(e.Type)),
		slog.String("id", e.ID),
		slog.String("fitbit_user_id", e.Detail.FitbitUserID),
		slog.String("date", e.Detail.Date),
	)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory. Err, when set, is returned from Publish.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

// Publish records e, or fails with r.Err.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, e)
	return nil
}

// Close is a no-op.
func (r *Recorder) Close() error { return nil }

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
