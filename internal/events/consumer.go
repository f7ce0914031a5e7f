package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// UploadHandler processes one upload event. A returned error rewinds the
// consumer to the failed message so it is retried.
type UploadHandler func(ctx context.Context, evt UploadEvent) error

// reader is the slice of kafka.Consumer the loop needs, kept narrow so tests
// can drive the loop without a broker.
type reader interface {
	SubscribeTopics([]string, kafka.RebalanceCb) error
	ReadMessage(time.Duration) (*kafka.Message, error)
	CommitMessage(*kafka.Message) ([]kafka.TopicPartition, error)
	Seek(kafka.TopicPartition, int) error
	Close() error
}

// UploadConsumer reads upload events and hands them to a handler with manual
// offset commits.
type UploadConsumer struct {
	consumer reader
	topic    string
	log      *slog.Logger
}

func NewUploadConsumer(brokers, groupID, topic string, log *slog.Logger) (*UploadConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"group.id":           groupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &UploadConsumer{consumer: c, topic: topic, log: log}, nil
}

func (c *UploadConsumer) Close() error {
	return c.consumer.Close()
}

// Run blocks until ctx is cancelled. Malformed payloads are logged and
// committed so they cannot wedge the partition.
func (c *UploadConsumer) Run(ctx context.Context, handler UploadHandler) error {
	if err := c.consumer.SubscribeTopics([]string{c.topic}, nil); err != nil {
		return fmt.Errorf("subscribe %s: %w", c.topic, err)
	}
	c.log.Info("upload consumer started", "topic", c.topic)

	for {
		select {
		case <-ctx.Done():
			c.log.Info("upload consumer stopping")
			return ctx.Err()
		default:
			msg, err := c.consumer.ReadMessage(100 * time.Millisecond)
			if err != nil {
				if kerr, ok := err.(kafka.Error); ok && kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				c.log.Error("read upload message", "error", err)
				continue
			}

			if typ := headerValue(msg, TypeHeader); typ != "" && EventType(typ) != VideoUploaded {
				c.log.Warn("skipping unexpected event type", "type", typ)
				c.commit(msg)
				continue
			}

			var evt UploadEvent
			if err := json.Unmarshal(msg.Value, &evt); err != nil {
				c.log.Error("malformed upload event, skipping", "error", err)
				c.commit(msg)
				continue
			}

			if err := handler(ctx, evt); err != nil {
				c.log.Error("handle upload event", "video_id", evt.VideoID, "error", err)
				c.seek(msg)
				continue
			}
			c.commit(msg)
		}
	}
}

// seek rewinds the partition to the failed message. ReadMessage advances the
// in-memory position even without a commit, so without the rewind a failed
// event would only come back after a rebalance or restart.
func (c *UploadConsumer) seek(msg *kafka.Message) {
	if err := c.consumer.Seek(msg.TopicPartition, 0); err != nil {
		c.log.Error("seek to failed offset", "partition", msg.TopicPartition.String(), "error", err)
	}
}

func (c *UploadConsumer) commit(msg *kafka.Message) {
	if _, err := c.consumer.CommitMessage(msg); err != nil {
		c.log.Error("commit offset", "error", err)
	}
}

func headerValue(msg *kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
