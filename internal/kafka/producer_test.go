package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaProducer_SendMessage(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, logger: zap.NewNop()}

	require.NoError(t, p.SendMessage(context.Background(), "order_events", []byte("ORD-1"), []byte(`{}`)))
	require.Len(t, w.messages, 1)
	assert.Equal(t, "order_events", w.messages[0].Topic)
	assert.Equal(t, []byte("ORD-1"), w.messages[0].Key)

	w.err = errors.New("leader not available")
	err := p.SendMessage(context.Background(), "order_events", nil, nil)
	assert.ErrorContains(t, err, "failed to write message to order_events")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestLogProducer_RespectsCancellation(t *testing.T) {
	p := NewLogProducer(zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.SendMessage(ctx, "t", nil, nil), context.Canceled)
	assert.NoError(t, p.SendMessage(context.Background(), "t", []byte("k"), []byte("v")))
}
