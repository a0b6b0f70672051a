package sender

import (
	"context"

	"vendzz/internal/logger"
)

// LogSender writes dispatches to the log instead of a provider.
type LogSender struct {
	logger logger.Logger
}

func NewLogSender(log logger.Logger) *LogSender {
	return &LogSender{logger: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfowCtx(ctx, "Dispatching campaign message",
		"id", msg.ID,
		"channel", msg.Channel,
		"quiz_id", msg.QuizID,
		"campaign_id", msg.CampaignID,
		"recipients", len(msg.Recipients),
	)
	return nil
}
