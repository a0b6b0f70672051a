package models

import (
	"fmt"
	"time"
)

type SendStatus string

const (
	SendStatusScheduled SendStatus = "scheduled"
	SendStatusSent      SendStatus = "sent"
	SendStatusFailed    SendStatus = "failed"
)

// ScheduledSend is one campaign message owed to one recipient.
type ScheduledSend struct {
	ID          string     `json:"id" bson:"_id"`
	CampaignID  string     `json:"campaign_id" bson:"campaign_id"`
	Channel     string     `json:"channel" bson:"channel"`
	Recipient   string     `json:"recipient" bson:"recipient"`
	Message     string     `json:"message" bson:"message"`
	Subject     string     `json:"subject,omitempty" bson:"subject,omitempty"`
	Status      SendStatus `json:"status" bson:"status"`
	ScheduledAt time.Time  `json:"scheduled_at" bson:"scheduled_at"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	QuizID      string     `json:"quiz_id" bson:"quiz_id"`
	UserID      string     `json:"user_id" bson:"user_id"`
}

// Payload flattens the send into an envelope payload.
func (s ScheduledSend) Payload() map[string]interface{} {
	return map[string]interface{}{
		"id":           s.ID,
		"campaign_id":  s.CampaignID,
		"channel":      s.Channel,
		"recipient":    s.Recipient,
		"message":      s.Message,
		"subject":      s.Subject,
		"status":       string(s.Status),
		"scheduled_at": s.ScheduledAt.UTC().Format(time.RFC3339Nano),
		"created_at":   s.CreatedAt.UTC().Format(time.RFC3339Nano),
		"quiz_id":      s.QuizID,
		"user_id":      s.UserID,
	}
}

// ScheduledSendFromEnvelope is the inverse of Payload.
func ScheduledSendFromEnvelope(msg MessageEnvelope) (ScheduledSend, error) {
	s := ScheduledSend{
		ID:         msg.StringField("id"),
		CampaignID: msg.StringField("campaign_id"),
		Channel:    msg.StringField("channel"),
		Recipient:  msg.StringField("recipient"),
		Message:    msg.StringField("message"),
		Subject:    msg.StringField("subject"),
		Status:     SendStatus(msg.StringField("status")),
		QuizID:     msg.StringField("quiz_id"),
		UserID:     msg.StringField("user_id"),
	}
	if s.CampaignID == "" || s.Recipient == "" {
		return ScheduledSend{}, &ValidationError{Field: "payload", Message: "campaign_id and recipient are required"}
	}

	var err error
	if s.ScheduledAt, err = parseTime(msg.StringField("scheduled_at")); err != nil {
		return ScheduledSend{}, fmt.Errorf("invalid scheduled_at: %w", err)
	}
	if s.CreatedAt, err = parseTime(msg.StringField("created_at")); err != nil {
		return ScheduledSend{}, fmt.Errorf("invalid created_at: %w", err)
	}
	return s, nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}
