package config_handler

import (
	"context"
	"encoding/json"

	"vendzz/internal/logger"
	"vendzz/pkg/logging"
	"vendzz/pkg/models"
)

// CampaignInvalidator drops cached campaign lists.
type CampaignInvalidator interface {
	Invalidate(quizID string) bool
	Clear()
}

type Handler struct {
	invalidator CampaignInvalidator
	logger      logger.Logger
}

func NewHandler(invalidator CampaignInvalidator, log logger.Logger) *Handler {
	return &Handler{
		invalidator: invalidator,
		logger:      log,
	}
}

// HandleCampaignUpdateEvent invalidates the affected quiz, or every quiz when
// the event does not name one. Unknown event types are ignored.
func (h *Handler) HandleCampaignUpdateEvent(ctx context.Context, envelope models.MessageEnvelope) error {
	eventType, ok := envelope.Payload["event_type"].(string)
	if !ok {
		h.logger.WarnwCtx(ctx, "Campaign event missing event_type", "id", envelope.ID)
		return nil
	}
	if eventType != models.EventTypeCampaignUpdated && eventType != models.EventTypeCampaignsReload {
		return nil
	}

	var event models.CampaignUpdateEvent
	eventJSON, err := json.Marshal(envelope.Payload)
	if err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to marshal event payload", "error", err, "id", envelope.ID)
		return err
	}
	if err := json.Unmarshal(eventJSON, &event); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to unmarshal campaign event", "error", err, "id", envelope.ID)
		return err
	}

	ctx = logging.WithCampaignID(logging.WithQuizID(ctx, event.QuizID), event.CampaignID)

	if event.EventType == models.EventTypeCampaignsReload || event.QuizID == "" {
		h.invalidator.Clear()
		h.logger.InfowCtx(ctx, "Campaign cache cleared", "action", event.Action)
		return nil
	}

	dropped := h.invalidator.Invalidate(event.QuizID)
	h.logger.InfowCtx(ctx, "Campaign cache invalidated",
		"action", event.Action,
		"channel", event.Channel,
		"was_cached", dropped,
	)
	return nil
}
