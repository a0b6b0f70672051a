package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"vendzz/internal/config"
	"vendzz/internal/constants"
	"vendzz/internal/logger"
	apperrors "vendzz/pkg/errors"
	"vendzz/pkg/logging"
	"vendzz/pkg/metrics"
	"vendzz/pkg/models"
	"vendzz/pkg/retry"
	"vendzz/pkg/tracing"
)

const fetchErrorBackoff = time.Second

type KafkaProducer struct {
	writer      *kafka.Writer
	logger      logger.Logger
	serviceName string
}

// NewKafkaProducer returns a synchronous producer. Messages are keyed by
// envelope id so redeliveries of one event land on the same partition.
func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: constants.KafkaBatchTimeout,
			WriteTimeout: constants.KafkaWriteTimeout,
		},
		logger:      log,
		serviceName: constants.ServiceName,
	}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope %s: %w", msg.ID, err)
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(msg.ID),
		Value:   body,
		Headers: tracing.InjectTraceContext(ctx, nil),
		Time:    start,
	}); err != nil {
		return fmt.Errorf("failed to write to %s: %w", topic, err)
	}

	metrics.ObserveKafkaWriteDuration(p.serviceName, topic, time.Since(start))
	metrics.IncKafkaMessagesWritten(p.serviceName, topic)
	metrics.ObserveKafkaMessageSize(p.serviceName, topic, "out", len(body))
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer reads topics as part of the configured consumer group. Each
// Consume call opens its own reader, so one consumer can serve several
// topics concurrently.
type KafkaConsumer struct {
	cfg         config.KafkaConfig
	logger      logger.Logger
	serviceName string
	dlq         Producer

	mu      sync.Mutex
	readers []*kafka.Reader
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	c := &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: constants.ServiceName,
	}
	if cfg.DLQTopic != "" {
		c.dlq = NewKafkaProducer(cfg, log)
	}
	return c
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *KafkaConsumer) openReader(topic string) *kafka.Reader {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	c.mu.Lock()
	c.readers = append(c.readers, reader)
	c.mu.Unlock()
	return reader
}

func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	reader := c.openReader(topic)
	ctx = logging.WithServiceName(ctx, c.serviceName)
	c.logger.InfowCtx(ctx, "Started consuming",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
	)

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.InfowCtx(ctx, "Stopped consuming", "topic", topic)
				return ctx.Err()
			}
			c.logger.ErrorwCtx(ctx, "Error fetching kafka message", "error", err, "topic", topic)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(fetchErrorBackoff):
			}
			continue
		}

		c.handle(ctx, topic, m, handler)

		// Every fetched message is committed: handler failures have already
		// been retried and dead-lettered.
		if err := reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.ErrorwCtx(ctx, "Failed to commit message",
				"error", err,
				"topic", topic,
				"offset", m.Offset,
			)
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, topic string, m kafka.Message, handler HandlerFunc) {
	metrics.IncKafkaMessagesRead(c.serviceName, topic)
	metrics.ObserveKafkaMessageSize(c.serviceName, topic, "in", len(m.Value))
	if m.HighWaterMark > 0 {
		metrics.SetKafkaConsumerLag(c.serviceName, topic, m.Partition, m.HighWaterMark-m.Offset-1)
	}

	var envelope models.MessageEnvelope
	err := json.Unmarshal(m.Value, &envelope)
	if err == nil {
		err = models.ValidateMessageEnvelope(&envelope)
	}
	if err != nil {
		c.logger.ErrorwCtx(ctx, "Discarding undecodable message",
			"error", err,
			"topic", topic,
			"partition", m.Partition,
			"offset", m.Offset,
		)
		return
	}

	msgCtx, span := tracing.StartSpanFromKafkaMessage(ctx, "kafka.consume "+topic, m.Headers)
	defer span.End()
	msgCtx = logging.WithTraceID(msgCtx, envelope.Metadata.TraceID)
	msgCtx = logging.WithMessageID(msgCtx, envelope.ID)

	start := time.Now()
	err = c.processWithRetry(msgCtx, topic, envelope, handler)
	metrics.ObserveKafkaReadDuration(c.serviceName, topic, time.Since(start))
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	span.RecordError(err)
	c.logger.ErrorwCtx(msgCtx, "Failed to process message after retries", "error", err, "topic", topic)
	if c.dlq == nil {
		c.logger.WarnwCtx(msgCtx, "No DLQ configured, dropping message", "topic", topic)
		return
	}
	if dlqErr := c.deadLetter(msgCtx, envelope, err, topic); dlqErr != nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to send message to DLQ", "error", dlqErr, "topic", topic)
	}
}

func (c *KafkaConsumer) processWithRetry(ctx context.Context, topic string, envelope models.MessageEnvelope, handler HandlerFunc) error {
	policy := retry.PolicyFromConfig(c.cfg.Retry)

	return retry.RetryWithCallback(ctx, policy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = apperrors.RecoverPanic(r)
				c.logger.ErrorwCtx(ctx, "Panic recovered during message processing", "error", err, "topic", topic)
			}
		}()
		return handler(ctx, envelope)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(c.serviceName, topic).Inc()
		c.logger.WarnwCtx(ctx, "Retrying message processing",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", topic,
		)
	})
}

func (c *KafkaConsumer) deadLetter(ctx context.Context, envelope models.MessageEnvelope, cause error, sourceTopic string) error {
	envelope.Metadata.DeadLetter = &models.DeadLetterInfo{
		Reason:      cause.Error(),
		SourceTopic: sourceTopic,
		At:          time.Now().UTC(),
	}
	if err := c.dlq.Publish(ctx, c.cfg.DLQTopic, envelope); err != nil {
		return err
	}

	metrics.DLQMessagesTotal.WithLabelValues(c.serviceName, sourceTopic, "max_retries_exceeded").Inc()
	c.logger.InfowCtx(ctx, "Message sent to DLQ",
		"source_topic", sourceTopic,
		"dlq_topic", c.cfg.DLQTopic,
	)
	return nil
}

func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	readers := c.readers
	c.readers = nil
	c.mu.Unlock()

	var errs []error
	for _, r := range readers {
		errs = append(errs, r.Close())
	}
	if c.dlq != nil {
		errs = append(errs, c.dlq.Close())
	}
	return errors.Join(errs...)
}
