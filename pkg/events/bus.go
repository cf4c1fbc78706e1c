// Package events publishes gradebook domain events on an in-process
// watermill pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

// Topics published by the API.
const (
	TopicConfigCreated = "grade_config.created"
	TopicConfigUpdated = "grade_config.updated"
	TopicGradesSaved   = "grades.saved"
)

// Topics lists every topic the API publishes.
var Topics = []string{TopicConfigCreated, TopicConfigUpdated, TopicGradesSaved}

// Envelope is the JSON body of every published message.
type Envelope struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	CourseSlug string          `json:"course_slug"`
	Actor      string          `json:"actor,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Bus wraps a gochannel pub/sub.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *zap.Logger
	now    func() time.Time
}

// NewBus builds a bus whose subscriber channels hold buffer messages.
func NewBus(buffer int64, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: buffer}, NewZapLogger(logger))
	return &Bus{pubsub: pubsub, logger: logger, now: time.Now}
}

// Publish marshals payload into an Envelope and publishes it on topic.
func (b *Bus) Publish(ctx context.Context, topic, courseSlug, actor string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	envelope := Envelope{
		ID:         watermill.NewUUID(),
		Topic:      topic,
		CourseSlug: courseSlug,
		Actor:      actor,
		OccurredAt: b.now().UTC(),
		Payload:    body,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", topic, err)
	}
	msg := message.NewMessage(envelope.ID, data)
	msg.Metadata.Set("course_slug", courseSlug)
	msg.SetContext(ctx)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns the message stream of topic until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

// Close stops the pub/sub and closes subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// Decode parses a message published by Bus.
func Decode(msg *message.Message) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("decode event %s: %w", msg.UUID, err)
	}
	return envelope, nil
}

// Handler consumes one decoded event.
type Handler func(ctx context.Context, event Envelope) error

// Consume subscribes handler to topics. Handler failures are logged and the
// message is acked anyway; gochannel redelivers nacked messages forever.
func (b *Bus) Consume(ctx context.Context, handler Handler, topics ...string) error {
	for _, topic := range topics {
		messages, err := b.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		go b.consume(ctx, topic, messages, handler)
	}
	return nil
}

func (b *Bus) consume(ctx context.Context, topic string, messages <-chan *message.Message, handler Handler) {
	for msg := range messages {
		event, err := Decode(msg)
		if err == nil {
			err = handler(ctx, event)
		}
		if err != nil {
			b.logger.Warn("event handler failed", zap.String("topic", topic), zap.String("message_id", msg.UUID), zap.Error(err))
		}
		msg.Ack()
	}
}

// LogHandler logs every event at info level.
func LogHandler(logger *zap.Logger) Handler {
	return func(_ context.Context, event Envelope) error {
		logger.Info("gradebook event",
			zap.String("topic", event.Topic),
			zap.String("event_id", event.ID),
			zap.String("course", event.CourseSlug),
			zap.String("actor", event.Actor),
			zap.ByteString("payload", event.Payload),
		)
		return nil
	}
}
