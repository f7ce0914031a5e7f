package events

import (
	"context"
	"time"
)

// Notifier announces terminal job outcomes to downstream consumers.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// KafkaNotifier publishes notifications on the configured topic, keyed by
// video so notifications for the same video stay ordered.
type KafkaNotifier struct {
	producer *Producer
	topic    string
}

func NewKafkaNotifier(producer *Producer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) Notify(ctx context.Context, note Notification) error {
	if note.Timestamp.IsZero() {
		note.Timestamp = time.Now().UTC()
	}
	typ := VideoIndexed
	if note.Status == "failed" {
		typ = VideoFailed
	}
	return n.producer.Publish(ctx, n.topic, typ, note.VideoID, note)
}

// NopNotifier drops notifications. Used when no broker is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }
