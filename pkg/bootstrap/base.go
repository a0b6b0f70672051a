// Package bootstrap holds the process-level wiring shared by the service
// commands: broker clients, database connections and ordered shutdown.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"vendzz/internal/broker"
	"vendzz/internal/config"
	"vendzz/internal/logger"
)

type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	// Consumer is nil when the broker type cannot consume.
	Consumer broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{Config: cfg, Logger: log}
}

// InitBroker creates the producer and, when the broker supports it, the
// consumer. A memory broker publishes in-process and consumes nothing.
func (b *Base) InitBroker(serviceName string) error {
	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}

	consumer, err := broker.NewConsumer(b.Config.Broker, b.Logger)
	switch {
	case errors.Is(err, broker.ErrNoConsumer):
		b.Logger.Infow("Broker cannot consume, inbound events disabled", "broker_type", b.Config.Broker.Type)
	case err != nil:
		_ = producer.Close()
		return fmt.Errorf("failed to create consumer: %w", err)
	case serviceName != "":
		consumer.SetServiceName(serviceName)
	}

	b.Producer = producer
	b.Consumer = consumer
	return nil
}

// Shutdown runs additionalShutdown first so components can flush through the
// producer, then closes the broker clients. All errors are joined.
func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error
	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}
	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close: %w", err))
		}
	}
	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	b.Logger.Info("Application exited successfully")
	return nil
}
