package repository

import (
	"context"

	"QuantPull/internal/domain/models"
	domrepo "QuantPull/internal/domain/repository"
	pkgkafka "QuantPull/pkg/kafka"
)

// KafkaBarPublisher publishes refreshed bars to a Kafka topic, keyed by
// ticker so one ticker's bars stay ordered within a partition.
type KafkaBarPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaBarPublisher(producer *pkgkafka.Producer, topic string) *KafkaBarPublisher {
	return &KafkaBarPublisher{producer: producer, topic: topic}
}

func (p *KafkaBarPublisher) PublishBars(ctx context.Context, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(bars))
	for i, b := range bars {
		msgs[i] = pkgkafka.Message{
			Key: []byte(b.Ticker),
			Value: map[string]interface{}{
				"ts":       b.Timestamp.Unix(),
				"ticker":   b.Ticker,
				"interval": b.Interval,
				"o":        b.Open,
				"h":        b.High,
				"l":        b.Low,
				"c":        b.Close,
				"v":        b.Volume,
				"source":   b.Source,
			},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaBarPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.BarPublisher = (*KafkaBarPublisher)(nil)
