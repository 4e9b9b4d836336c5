package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/config"
)

// KindHeader names the message header carrying Record.Kind.
const KindHeader = "kind"

// Record is an event the producer can publish. Key picks the partition, so
// all records of one document stay ordered on one partition.
type Record interface {
	Key() string
	Kind() string
	Validate() error
}

// Producer publishes JSON-encoded records to a Kafka topic.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{
		writer: w,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

func (p *Producer) Publish(ctx context.Context, record Record) error {
	return p.PublishBatch(ctx, []Record{record})
}

// PublishBatch validates and encodes every record before writing any, so a
// bad record fails the whole batch and nothing is sent.
func (p *Producer) PublishBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	messages, err := Encode(records)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Error("failed to publish batch",
			"count", len(messages),
			"first_key", records[0].Key(),
			"error", err,
		)
		return fmt.Errorf("publishing batch to kafka: %w", err)
	}
	p.logger.Debug("batch published", "count", len(messages))
	return nil
}

// Encode turns records into Kafka messages. The index of the first invalid
// record is part of the error.
func Encode(records []Record) ([]kafka.Message, error) {
	messages := make([]kafka.Message, 0, len(records))
	for i, record := range records {
		if err := record.Validate(); err != nil {
			return nil, fmt.Errorf("record %d (key %s): %w", i, record.Key(), err)
		}
		value, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("marshaling record %d: %w", i, err)
		}
		messages = append(messages, kafka.Message{
			Key:     []byte(record.Key()),
			Value:   value,
			Headers: []kafka.Header{{Key: KindHeader, Value: []byte(record.Kind())}},
		})
	}
	return messages, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
