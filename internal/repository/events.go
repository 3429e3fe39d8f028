package repository

import (
	"context"

	"CrashCast/internal/domain/models"
	"CrashCast/internal/domain/repository"
	pkgkafka "CrashCast/pkg/kafka"
)

// KafkaEventPublisher implements EventPublisher for Kafka. Events are keyed
// by phase key so replays preserve per-phase ordering.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaEventPublisher creates a Kafka publisher.
func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) repository.EventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, ev models.PredictionEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.PhaseKey), ev)
}

// Process lets the publisher sit behind a sink pipeline.
func (p *KafkaEventPublisher) Process(ctx context.Context, ev models.PredictionEvent) error {
	return p.Publish(ctx, ev)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
