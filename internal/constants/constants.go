package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	ServiceName        = "dispatch-service"
	DefaultMongoDBName = "vendzz"
)

const (
	DefaultCompletionTopic     = "completion_events"
	DefaultCampaignUpdateTopic = "campaign_updates"
	DefaultSendLogTopic        = "scheduled_sends"
)

const (
	CacheKeyPrefixSendLog   = "sendlog:"
	CacheKeyPrefixAdmission = "admission:"
)

const (
	ChannelSMS      = "sms"
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
	ChannelVoice    = "voice"
)

const (
	DefaultEmailTriggerDelay    = 5 * time.Minute
	DefaultWhatsAppTriggerDelay = time.Minute
)

const (
	MaxPhoneDigits = 15
	MinPhoneDigits = 10
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)
