package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Producer publishes typed events to Kafka and waits for broker
// acknowledgement before returning.
type Producer struct {
	p   *kafka.Producer
	log *slog.Logger
}

func NewProducer(brokers string, log *slog.Logger) (*Producer, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "all",
		"retries":           5,
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	// Drain the global event channel so delivery failures surface in logs.
	go func() {
		for e := range p.Events() {
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					log.Error("kafka delivery failed", "partition", ev.TopicPartition.String(), "error", ev.TopicPartition.Error)
				}
			case kafka.Error:
				log.Error("kafka producer error", "error", ev)
			}
		}
	}()

	return &Producer{p: p, log: log}, nil
}

func (p *Producer) Close() {
	if p == nil || p.p == nil {
		return
	}
	if remaining := p.p.Flush(5000); remaining > 0 {
		p.log.Warn("kafka producer closed with unflushed messages", "remaining", remaining)
	}
	p.p.Close()
}

// Publish sends one event keyed by key, with the event type in a message
// header, and blocks until the broker confirms delivery.
func (p *Producer) Publish(ctx context.Context, topic string, typ EventType, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", typ, err)
	}

	// Buffered and never closed: on ctx cancellation the late delivery
	// report must still have somewhere to go.
	deliveryChan := make(chan kafka.Event, 1)

	err = p.p.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          data,
		Headers:        []kafka.Header{{Key: TypeHeader, Value: []byte(typ)}},
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("produce %s event: %w", typ, err)
	}

	select {
	case ev := <-deliveryChan:
		m := ev.(*kafka.Message)
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("deliver %s event: %w", typ, m.TopicPartition.Error)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
