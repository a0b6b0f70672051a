package campaignqueue

import (
	"time"

	"vendzz/internal/constants"
)

// Request is a pre-built campaign send for a list of recipients.
type Request struct {
	Channel    string        `json:"channel" validate:"required,oneof=sms email whatsapp voice"`
	QuizID     string        `json:"quiz_id" validate:"required"`
	CampaignID string        `json:"campaign_id,omitempty"`
	UserID     string        `json:"user_id"`
	Recipients []string      `json:"recipients" validate:"required,min=1,dive,required"`
	Message    string        `json:"message" validate:"required"`
	Subject    string        `json:"subject,omitempty"`
	Delay      time.Duration `json:"delay" validate:"gte=0"`
}

// Item is one chunk of a Request, dispatched independently.
type Item struct {
	ID           string    `json:"id"`
	Channel      string    `json:"channel"`
	QuizID       string    `json:"quiz_id"`
	CampaignID   string    `json:"campaign_id,omitempty"`
	UserID       string    `json:"user_id"`
	Recipients   []string  `json:"recipients"`
	Message      string    `json:"message"`
	Subject      string    `json:"subject,omitempty"`
	Priority     int       `json:"priority"`
	ScheduledFor time.Time `json:"scheduled_for"`
	CreatedAt    time.Time `json:"created_at"`

	// batchKey is set on items that accept more forwarded recipients.
	batchKey string
}

// DefaultChannelWeights favors SMS, then WhatsApp, email and voice.
var DefaultChannelWeights = map[string]int{
	constants.ChannelSMS:      4,
	constants.ChannelWhatsApp: 3,
	constants.ChannelEmail:    2,
	constants.ChannelVoice:    1,
}

const priorityRecipientCap = 10

func priority(weight, recipients int) int {
	if recipients > priorityRecipientCap {
		recipients = priorityRecipientCap
	}
	return weight * recipients
}

func chunk(recipients []string, size int) [][]string {
	if size <= 0 {
		size = len(recipients)
	}
	out := make([][]string, 0, (len(recipients)+size-1)/size)
	for start := 0; start < len(recipients); start += size {
		end := start + size
		if end > len(recipients) {
			end = len(recipients)
		}
		part := make([]string, end-start)
		copy(part, recipients[start:end])
		out = append(out, part)
	}
	return out
}
