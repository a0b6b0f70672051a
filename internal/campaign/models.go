package campaign

import (
	"time"

	"vendzz/internal/constants"
)

type Channel string

const (
	ChannelSMS      Channel = constants.ChannelSMS
	ChannelEmail    Channel = constants.ChannelEmail
	ChannelWhatsApp Channel = constants.ChannelWhatsApp
	ChannelVoice    Channel = constants.ChannelVoice
)

// Channels lists every supported channel in default dispatch preference.
var Channels = []Channel{ChannelSMS, ChannelWhatsApp, ChannelEmail, ChannelVoice}

func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelWhatsApp, ChannelVoice:
		return true
	}
	return false
}

// Base holds the fields shared by every campaign variant.
type Base struct {
	ID           string
	QuizID       string
	UserID       string
	TriggerDelay time.Duration
	Active       bool
	// Condition is an optional CEL expression evaluated against the completion.
	Condition string
}

func (b Base) Common() Base { return b }

// Campaign is implemented only by SMSCampaign, EmailCampaign,
// WhatsAppCampaign and VoiceCampaign.
type Campaign interface {
	Common() Base
	Channel() Channel
	campaign()
}

type SMSCampaign struct {
	Base
	Message string
}

type EmailCampaign struct {
	Base
	Subject string
	Body    string
}

type WhatsAppCampaign struct {
	Base
	Message string
}

type VoiceCampaign struct {
	Base
	Script  string
	VoiceID string
}

func (SMSCampaign) Channel() Channel      { return ChannelSMS }
func (EmailCampaign) Channel() Channel    { return ChannelEmail }
func (WhatsAppCampaign) Channel() Channel { return ChannelWhatsApp }
func (VoiceCampaign) Channel() Channel    { return ChannelVoice }

func (SMSCampaign) campaign()      {}
func (EmailCampaign) campaign()    {}
func (WhatsAppCampaign) campaign() {}
func (VoiceCampaign) campaign()    {}
