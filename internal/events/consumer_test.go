package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"vidflow/internal/models"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader replays a fixed message sequence and records commits and seeks.
// idle runs once the sequence is exhausted, before the timed-out read.
type fakeReader struct {
	msgs    []*kafka.Message
	pos     int
	commits []kafka.Offset
	seeks   []kafka.Offset
	idle    func()
}

func (f *fakeReader) SubscribeTopics([]string, kafka.RebalanceCb) error { return nil }

func (f *fakeReader) ReadMessage(time.Duration) (*kafka.Message, error) {
	if f.pos >= len(f.msgs) {
		if f.idle != nil {
			f.idle()
		}
		return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false)
	}
	m := f.msgs[f.pos]
	f.pos++
	return m, nil
}

func (f *fakeReader) CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error) {
	f.commits = append(f.commits, m.TopicPartition.Offset)
	return nil, nil
}

func (f *fakeReader) Seek(tp kafka.TopicPartition, _ int) error {
	f.seeks = append(f.seeks, tp.Offset)
	for i, m := range f.msgs {
		if m.TopicPartition.Offset == tp.Offset {
			f.pos = i
			break
		}
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func uploadMessage(t *testing.T, offset kafka.Offset, evt UploadEvent) *kafka.Message {
	t.Helper()
	data, err := json.Marshal(evt)
	require.NoError(t, err)
	topic := "video.uploads"
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Offset: offset},
		Key:            []byte(evt.VideoID),
		Value:          data,
		Headers:        []kafka.Header{{Key: TypeHeader, Value: []byte(VideoUploaded)}},
	}
}

func TestConsumerRetriesFailedEventBeforeAdvancing(t *testing.T) {
	evt := UploadEvent{VideoID: "v1", StorageRef: models.StorageRef{Bucket: "uploads", Key: "v1.mp4"}}
	f := &fakeReader{msgs: []*kafka.Message{uploadMessage(t, 7, evt)}}
	c := &UploadConsumer{consumer: f, topic: "video.uploads", log: slog.Default()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	err := c.Run(ctx, func(_ context.Context, got UploadEvent) error {
		calls++
		if calls == 1 {
			return errors.New("workflow service unavailable")
		}
		assert.Equal(t, "v1", got.VideoID)
		cancel()
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []kafka.Offset{7}, f.seeks)
	assert.Equal(t, []kafka.Offset{7}, f.commits)
}

func TestConsumerSkipsForeignEventTypes(t *testing.T) {
	topic := "video.uploads"
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Offset: 3},
		Value:          []byte(`{}`),
		Headers:        []kafka.Header{{Key: TypeHeader, Value: []byte(VideoIndexed)}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := &fakeReader{msgs: []*kafka.Message{msg}, idle: cancel}
	c := &UploadConsumer{consumer: f, topic: topic, log: slog.Default()}

	err := c.Run(ctx, func(context.Context, UploadEvent) error {
		t.Error("handler must not run for foreign event types")
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []kafka.Offset{3}, f.commits)
	assert.Empty(t, f.seeks)
}

func TestConsumerCommitsPastMalformedEvents(t *testing.T) {
	topic := "video.uploads"
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Offset: 4},
		Value:          []byte("{not json"),
		Headers:        []kafka.Header{{Key: TypeHeader, Value: []byte(VideoUploaded)}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := &fakeReader{msgs: []*kafka.Message{msg}, idle: cancel}
	c := &UploadConsumer{consumer: f, topic: topic, log: slog.Default()}

	err := c.Run(ctx, func(context.Context, UploadEvent) error {
		t.Error("handler must not run for malformed events")
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []kafka.Offset{4}, f.commits)
	assert.Empty(t, f.seeks)
}
