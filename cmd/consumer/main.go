package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
)

const groupID = "order-events-consumer-group"

// The consumer tails the order events topic and logs each event. It is a debugging aid for the
// outbox pipeline.
func main() {
	config.LoadEnv()
	cfg, err := config.FromEnv()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	l := logger.New(cfg.LogLevel)
	defer func() { _ = l.Sync() }()

	if cfg.KafkaBrokers == "" {
		l.Fatal("KAFKA_BROKERS is not set")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	brokers := strings.Split(cfg.KafkaBrokers, ",")
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          cfg.KafkaTopic,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        3 * time.Second,
	})
	defer func() {
		if err := r.Close(); err != nil {
			l.Error("Error closing Kafka reader", zap.Error(err))
		}
	}()

	l.Info("Consumer connected", zap.String("topic", cfg.KafkaTopic), zap.Strings("brokers", brokers))

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				l.Info("Shutdown signal received, stopping consumer")
				return
			}
			l.Error("Error reading message", zap.Error(err))
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		var event storage.OrderEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			l.Warn("Skipping malformed event", zap.Int64("offset", m.Offset), zap.Error(err))
			continue
		}

		l.Info("Order event received",
			zap.String("type", string(event.Type)),
			zap.String("order_id", event.OrderID),
			zap.String("status", string(event.Status)),
			zap.String("old_status", string(event.OldStatus)),
			zap.String("return_id", event.ReturnID),
			zap.Time("occurred_at", event.OccurredAt),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
	}
}
