package repository

import (
	"context"

	"IncluScore/internal/domain/models"
	domrepo "IncluScore/internal/domain/repository"
	pkgkafka "IncluScore/pkg/kafka"
)

// KafkaOutcomePublisher ships labeled outcomes to the outcomes topic.
// Keyed by beneficiary id so one beneficiary's outcomes stay ordered.
type KafkaOutcomePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaOutcomePublisher(producer *pkgkafka.Producer, topic string) domrepo.OutcomePublisher {
	return &KafkaOutcomePublisher{producer: producer, topic: topic}
}

func (p *KafkaOutcomePublisher) Publish(ctx context.Context, o *models.Outcome) error {
	return p.producer.Publish(ctx, p.topic, []byte(o.BeneficiaryID), o)
}

func (p *KafkaOutcomePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
