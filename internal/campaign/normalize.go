package campaign

import (
	"fmt"
	"strings"
	"time"

	"vendzz/internal/constants"
)

// Record is a campaign row as stored, before eligibility filtering and
// channel-specific normalization.
type Record struct {
	ID                  string
	QuizID              string
	UserID              string
	Channel             Channel
	Status              string
	TriggerType         string
	TriggerDelayMinutes *int
	Message             string
	Subject             string
	Body                string
	Script              string
	VoiceID             string
	Condition           string
}

// Eligible reports whether the record may fire on quiz completion.
func Eligible(r Record) bool {
	status := strings.ToLower(r.Status)
	switch r.Channel {
	case ChannelSMS, ChannelWhatsApp:
		return status == "active" || status == "scheduled"
	case ChannelEmail:
		if status != "active" && status != "draft" {
			return false
		}
		trigger := strings.ToLower(r.TriggerType)
		return trigger == "on_completion" || trigger == "delayed"
	case ChannelVoice:
		return status == "active"
	}
	return false
}

// Normalize converts an eligible record into its Campaign variant, applying
// per-channel default trigger delays when none is configured. Records with
// nothing to send are rejected.
func Normalize(r Record) (Campaign, error) {
	if r.Channel.Valid() && strings.TrimSpace(content(r)) == "" {
		return nil, fmt.Errorf("campaign %s: empty %s content", r.ID, r.Channel)
	}

	base := Base{
		ID:        r.ID,
		QuizID:    r.QuizID,
		UserID:    r.UserID,
		Active:    true,
		Condition: r.Condition,
	}

	switch r.Channel {
	case ChannelSMS:
		base.TriggerDelay = delayOr(r.TriggerDelayMinutes, 0)
		return SMSCampaign{Base: base, Message: r.Message}, nil
	case ChannelEmail:
		base.TriggerDelay = delayOr(r.TriggerDelayMinutes, constants.DefaultEmailTriggerDelay)
		return EmailCampaign{Base: base, Subject: r.Subject, Body: r.Body}, nil
	case ChannelWhatsApp:
		base.TriggerDelay = delayOr(r.TriggerDelayMinutes, constants.DefaultWhatsAppTriggerDelay)
		return WhatsAppCampaign{Base: base, Message: r.Message}, nil
	case ChannelVoice:
		base.TriggerDelay = delayOr(r.TriggerDelayMinutes, 0)
		return VoiceCampaign{Base: base, Script: r.Script, VoiceID: r.VoiceID}, nil
	default:
		return nil, fmt.Errorf("campaign %s: unknown channel %q", r.ID, r.Channel)
	}
}

// content is the text a campaign delivers on its channel.
func content(r Record) string {
	switch r.Channel {
	case ChannelSMS, ChannelWhatsApp:
		return r.Message
	case ChannelEmail:
		return r.Body
	case ChannelVoice:
		return r.Script
	}
	return ""
}

func delayOr(minutes *int, fallback time.Duration) time.Duration {
	if minutes == nil || *minutes < 0 {
		return fallback
	}
	return time.Duration(*minutes) * time.Minute
}
