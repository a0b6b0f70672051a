// Package broker moves message envelopes between the dispatch service and
// Kafka: completion events and campaign updates in, scheduled sends and
// channel dispatches out.
package broker

import (
	"context"
	"errors"
	"fmt"

	"vendzz/internal/config"
	"vendzz/internal/logger"
	"vendzz/pkg/models"
)

// ErrNoConsumer is returned by NewConsumer for broker types that can only
// publish.
var ErrNoConsumer = errors.New("broker type does not support consuming")

type Producer interface {
	Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error
	Close() error
}

// Consumer delivers messages from one topic to a handler. Consume blocks until
// ctx is done and returns ctx.Err().
type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

// HandlerFunc processes one envelope. A non-nil error triggers retries and,
// once they are exhausted, the dead letter topic.
type HandlerFunc func(ctx context.Context, msg models.MessageEnvelope) error

// NewProducer returns a producer for cfg.Type: "kafka", or "memory" (also the
// empty type) for a process-local recorder.
func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaProducer(cfg.Kafka, log), nil
	case "", "memory":
		return NewMemoryProducer(), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

func NewConsumer(cfg config.BrokerConfig, log logger.Logger) (Consumer, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaConsumer(cfg.Kafka, log), nil
	case "", "memory":
		return nil, ErrNoConsumer
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
