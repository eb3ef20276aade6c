// Package kafka publishes post events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/okian/postflow/internal/adapters/mq/queue"
)

const (
	eventTypeHeader = "event-type"
	eventType       = "post.published"
	clientID        = "postflow"
)

// Producer sends events synchronously, keyed by author id so one author's
// events stay ordered on a partition.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewConfig returns the producer settings used by NewProducer.
func NewConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Retry.Max = 3
	return cfg
}

// NewProducer dials brokers.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	sp, err := sarama.NewSyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka.new_producer: %w", err)
	}
	return NewProducerFrom(sp, topic), nil
}

// NewProducerFrom wraps an existing SyncProducer.
func NewProducerFrom(sp sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: sp, topic: topic}
}

// Publish implements worker.Publisher.
func (p *Producer) Publish(ctx context.Context, e queue.Event) error { //nolint:gocritic // hugeParam: matches the Publisher interface
	const op = "kafka.publish"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.AuthorID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte(eventTypeHeader), Value: []byte(eventType)},
		},
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("%s: %s: %w", op, e.PostID, err)
	}
	return nil
}

// Close flushes and closes the underlying producer.
func (p *Producer) Close() error {
	return p.producer.Close()
}
