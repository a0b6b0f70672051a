package sender

import (
	"fmt"
	"strings"

	"vendzz/internal/broker"
	"vendzz/internal/config"
	"vendzz/internal/constants"
	"vendzz/internal/logger"
	"vendzz/pkg/retry"
)

var channels = []string{
	constants.ChannelSMS,
	constants.ChannelEmail,
	constants.ChannelWhatsApp,
	constants.ChannelVoice,
}

// NewRegistryFromConfig registers one sender per channel.
func NewRegistryFromConfig(cfg config.SendersConfig, producer broker.Producer, log logger.Logger) (*Registry, error) {
	reg := NewRegistry()

	switch strings.ToLower(cfg.Type) {
	case "log":
		ls := NewLogSender(log)
		for _, ch := range channels {
			reg.Register(ch, ls)
		}
	case "broker":
		if producer == nil {
			return nil, fmt.Errorf("broker senders require a producer")
		}
		policy := retry.PolicyFromConfig(cfg.Retry)
		for _, ch := range channels {
			topic := cfg.Topics[ch]
			if topic == "" {
				topic = "dispatch_" + ch
			}
			reg.Register(ch, NewBrokerSender(producer, topic, policy, log))
		}
	default:
		return nil, fmt.Errorf("unsupported senders type: %s", cfg.Type)
	}

	for ch, perSecond := range cfg.RateLimits {
		s, ok := reg.Get(ch)
		if !ok || perSecond <= 0 {
			continue
		}
		reg.Register(ch, NewThrottledSender(s, perSecond, cfg.Burst))
	}

	return reg, nil
}
