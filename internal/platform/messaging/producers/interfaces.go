package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter abstracts the kafka writer for testability
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageProducer publishes keyed JSON messages to a topic
type MessageProducer interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}
