package sender

import (
	"context"
	"fmt"
	"time"

	"vendzz/internal/broker"
	"vendzz/internal/constants"
	"vendzz/internal/logger"
	"vendzz/pkg/metrics"
	"vendzz/pkg/models"
	"vendzz/pkg/retry"
)

// BrokerSender publishes dispatches to a per-channel topic consumed by the
// provider gateways.
type BrokerSender struct {
	producer broker.Producer
	topic    string
	policy   retry.Policy
	logger   logger.Logger
}

func NewBrokerSender(producer broker.Producer, topic string, policy retry.Policy, log logger.Logger) *BrokerSender {
	return &BrokerSender{
		producer: producer,
		topic:    topic,
		policy:   policy,
		logger:   log,
	}
}

func (s *BrokerSender) Send(ctx context.Context, msg Message) error {
	recipients := make([]interface{}, len(msg.Recipients))
	for i, r := range msg.Recipients {
		recipients[i] = r
	}

	env := models.NewEnvelope(models.KindDispatch).
		ID(msg.ID).
		Source(constants.ServiceName).
		Traced(ctx).
		Payload(map[string]interface{}{
			"channel":     msg.Channel,
			"quiz_id":     msg.QuizID,
			"user_id":     msg.UserID,
			"campaign_id": msg.CampaignID,
			"subject":     msg.Subject,
			"body":        msg.Body,
			"recipients":  recipients,
		}).
		Build()

	err := retry.RetryWithCallback(ctx, s.policy, func() error {
		return s.producer.Publish(ctx, s.topic, env)
	}, func(attempt int, err error, next time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(constants.ServiceName, s.topic).Inc()
		s.logger.WarnwCtx(ctx, "Retrying dispatch publish",
			"topic", s.topic,
			"attempt", attempt,
			"next_delay", next,
			"error", err,
		)
	})
	if err != nil {
		return fmt.Errorf("failed to publish dispatch to %s: %w", s.topic, err)
	}
	return nil
}
