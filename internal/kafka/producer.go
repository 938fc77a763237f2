package kafka

import (
	"context"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Producer interface {
	SendMessage(ctx context.Context, topic string, key []byte, value []byte) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer writes synchronously and waits for all in-sync replicas. The topic is set per
// message, so one producer serves every outbox topic.
type KafkaProducer struct {
	writer messageWriter
	logger *zap.Logger
}

var _ Producer = (*KafkaProducer)(nil)

// NewKafkaProducer accepts a comma-separated broker list.
func NewKafkaProducer(brokers string, logger *zap.Logger) *KafkaProducer {
	var addrs []string
	for _, a := range strings.Split(brokers, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}

	logger.Info("Initialized Kafka producer", zap.Strings("brokers", addrs))
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(addrs...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		logger: logger,
	}
}

func (p *KafkaProducer) SendMessage(ctx context.Context, topic string, key []byte, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("failed to write message to %s: %w", topic, err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	p.logger.Info("Closing Kafka producer")
	return p.writer.Close()
}

// LogProducer only logs messages. It stands in for a broker in local runs.
type LogProducer struct {
	logger *zap.Logger
}

var _ Producer = (*LogProducer)(nil)

func NewLogProducer(logger *zap.Logger) *LogProducer {
	logger.Info("Initialized log producer, events will not leave the process")
	return &LogProducer{logger: logger}
}

func (p *LogProducer) SendMessage(ctx context.Context, topic string, key []byte, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.logger.Info("Event published",
		zap.String("topic", topic),
		zap.ByteString("key", key),
		zap.ByteString("value", value),
	)
	return nil
}

func (p *LogProducer) Close() error {
	return nil
}
