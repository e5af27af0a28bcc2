// Package kafka publishes chat events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/cometx/pkg/eventstream"
	"github.com/papercomputeco/cometx/pkg/logger"
)

const defaultWriteTimeout = 5 * time.Second

// Config holds the broker connection settings.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// MessageWriter is the subset of *kafkago.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes each event as one JSON message keyed by conversation.
type Publisher struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithWriter replaces the kafka-go writer.
func WithWriter(w MessageWriter) Option {
	return func(p *Publisher) { p.writer = w }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// NewPublisher creates a publisher for cfg.Topic on cfg.Brokers.
func NewPublisher(cfg Config, opts ...Option) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka publisher: topic is required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	p := &Publisher{
		topic:  cfg.Topic,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.writer == nil {
		p.writer = &kafkago.Writer{
			Addr:                   kafkago.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			WriteTimeout:           cfg.WriteTimeout,
			AllowAutoTopicCreation: true,
		}
	}

	return p, nil
}

// PublishChat encodes event and writes it synchronously.
func (p *Publisher) PublishChat(ctx context.Context, event *eventstream.ChatCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilChatEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding chat event: %w", err)
	}

	key := event.ConversationID
	if key == "" {
		key = event.EventID
	}

	msg := kafkago.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(strconv.Itoa(event.SchemaVersion))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing chat event to %s: %w", p.topic, err)
	}

	p.logger.Debug("chat event published",
		"topic", p.topic,
		"event_id", event.EventID,
		"bytes", len(payload),
	)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
