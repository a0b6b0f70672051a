package sendlog

import (
	"context"
	"fmt"

	"vendzz/internal/broker"
	"vendzz/internal/constants"
	"vendzz/pkg/models"
)

// BrokerRecorder publishes each send to a topic for a downstream log writer.
// Consumers must upsert on (campaign_id, recipient).
type BrokerRecorder struct {
	producer broker.Producer
	topic    string
}

func NewBrokerRecorder(producer broker.Producer, topic string) *BrokerRecorder {
	if topic == "" {
		topic = constants.DefaultSendLogTopic
	}
	return &BrokerRecorder{producer: producer, topic: topic}
}

func (r *BrokerRecorder) Record(ctx context.Context, send models.ScheduledSend) error {
	env := models.NewEnvelope(models.KindScheduledSend).
		ID(key(send.CampaignID, send.Recipient)).
		Source(constants.ServiceName).
		Traced(ctx).
		Payload(send.Payload()).
		Build()

	if err := r.producer.Publish(ctx, r.topic, env); err != nil {
		return fmt.Errorf("failed to publish scheduled send: %w", err)
	}
	return nil
}

func (r *BrokerRecorder) UpdateStatus(ctx context.Context, campaignID, recipient string, status models.SendStatus) error {
	env := models.NewEnvelope(models.KindScheduledSend).
		ID(key(campaignID, recipient)+":"+string(status)).
		Source(constants.ServiceName).
		Traced(ctx).
		Field("campaign_id", campaignID).
		Field("recipient", recipient).
		Field("status", string(status)).
		Build()

	if err := r.producer.Publish(ctx, r.topic, env); err != nil {
		return fmt.Errorf("failed to publish send status: %w", err)
	}
	return nil
}

func (r *BrokerRecorder) Backend() string {
	return "kafka"
}
