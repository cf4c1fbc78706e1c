package service

import (
	"context"

	"go.uber.org/zap"
)

// EventPublisher publishes domain events; *events.Bus satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, topic, courseSlug, actor string, payload interface{}) error
}

// notifier publishes events best effort; failures never fail the request.
type notifier struct {
	publisher EventPublisher
	metrics   *MetricsService
	logger    *zap.Logger
}

func (n notifier) publish(ctx context.Context, topic, courseSlug, actor string, payload interface{}) {
	if n.publisher == nil {
		return
	}
	if err := n.publisher.Publish(ctx, topic, courseSlug, actor, payload); err != nil {
		n.logger.Warn("publish event failed", zap.String("topic", topic), zap.String("course", courseSlug), zap.Error(err))
		return
	}
	n.metrics.RecordEvent(topic)
}
