package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/paymentops/transaction-saga/internal/config"
	"github.com/segmentio/kafka-go"
)

// SagaEventProducer publishes terminal saga lifecycle events to the events
// topic, keyed by saga id so all events of one saga land on one partition.
type SagaEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewSagaEventProducer creates the lifecycle event producer and ensures the
// topic exists.
func NewSagaEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*SagaEventProducer, error) {
	if cfg.EventsTopic == "" {
		return nil, fmt.Errorf("kafka events topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for saga event producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.EventsTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure events topic %s exists: %w", cfg.EventsTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.EventsTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true, // Lifecycle events must not block saga completion
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write saga events asynchronously", "topic", cfg.EventsTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote saga events asynchronously", "topic", cfg.EventsTopic, "count", len(messages))
			}
		},
	}

	return &SagaEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.EventsTopic,
	}, nil
}

// Publish sends one lifecycle event keyed by saga id
func (p *SagaEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal saga event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish saga event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish saga event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published saga event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

// Close shuts down the underlying writer
func (p *SagaEventProducer) Close() error {
	p.logger.Info("Closing saga event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close saga event writer for topic %s: %w", p.topic, err)
	}
	return nil
}
