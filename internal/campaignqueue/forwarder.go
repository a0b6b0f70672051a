package campaignqueue

import (
	"context"

	"vendzz/pkg/models"
)

// Forwarder enqueues recorded scheduled sends for dispatch at their
// scheduled time. Sends of one campaign due in the same window share items.
type Forwarder struct {
	queue *Queue
}

func NewForwarder(q *Queue) *Forwarder {
	return &Forwarder{queue: q}
}

func (f *Forwarder) Forward(ctx context.Context, send models.ScheduledSend) error {
	delay := send.ScheduledAt.Sub(f.queue.now())
	if delay < 0 {
		delay = 0
	}

	_, err := f.queue.Coalesce(ctx, Request{
		Channel:    send.Channel,
		QuizID:     send.QuizID,
		CampaignID: send.CampaignID,
		UserID:     send.UserID,
		Recipients: []string{send.Recipient},
		Message:    send.Message,
		Subject:    send.Subject,
		Delay:      delay,
	})
	return err
}
