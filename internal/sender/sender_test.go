package sender

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendzz/internal/broker"
	"vendzz/internal/config"
	"vendzz/internal/logger"
	"vendzz/pkg/models"
	"vendzz/pkg/retry"
)

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestRegistry_RoutesByChannel(t *testing.T) {
	reg := NewRegistry()

	var smsCalls, emailCalls int32
	reg.Register("sms", SenderFunc(func(ctx context.Context, msg Message) error {
		atomic.AddInt32(&smsCalls, 1)
		return nil
	}))
	reg.Register("email", SenderFunc(func(ctx context.Context, msg Message) error {
		atomic.AddInt32(&emailCalls, 1)
		return errors.New("smtp down")
	}))

	ctx := context.Background()
	require.NoError(t, reg.Send(ctx, Message{Channel: "sms"}))
	require.Error(t, reg.Send(ctx, Message{Channel: "email"}))

	err := reg.Send(ctx, Message{Channel: "fax"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fax")

	assert.Equal(t, int32(1), smsCalls)
	assert.Equal(t, int32(1), emailCalls)
	assert.ElementsMatch(t, []string{"sms", "email"}, reg.Channels())
}

func TestBrokerSender_Publishes(t *testing.T) {
	producer := broker.NewMemoryProducer()
	s := NewBrokerSender(producer, "dispatch_sms", fastPolicy(3), logger.NopLogger())

	msg := Message{
		ID:         "item-1",
		Channel:    "sms",
		QuizID:     "Q1",
		Body:       "hi",
		Recipients: []string{"5511999998888", "5511999997777"},
	}
	require.NoError(t, s.Send(context.Background(), msg))

	published := producer.Messages("dispatch_sms")
	require.Len(t, published, 1)
	assert.Equal(t, "item-1", published[0].ID)
	assert.Equal(t, models.KindDispatch, published[0].Kind)
	assert.Equal(t, "Q1", published[0].StringField("quiz_id"))
	assert.Len(t, published[0].Payload["recipients"], 2)
}

type flakyProducer struct {
	*broker.MemoryProducer
	failures int32
	calls    int32
}

func (p *flakyProducer) Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error {
	n := atomic.AddInt32(&p.calls, 1)
	if n <= p.failures {
		return errors.New("leader not available")
	}
	return p.MemoryProducer.Publish(ctx, topic, msg)
}

func TestBrokerSender_RetriesTransientErrors(t *testing.T) {
	producer := &flakyProducer{MemoryProducer: broker.NewMemoryProducer(), failures: 2}
	s := NewBrokerSender(producer, "dispatch_email", fastPolicy(3), logger.NopLogger())

	require.NoError(t, s.Send(context.Background(), Message{ID: "x", Channel: "email"}))
	assert.Equal(t, int32(3), atomic.LoadInt32(&producer.calls))
	assert.Len(t, producer.Messages("dispatch_email"), 1)
}

func TestBrokerSender_GivesUp(t *testing.T) {
	producer := &flakyProducer{MemoryProducer: broker.NewMemoryProducer(), failures: 10}
	s := NewBrokerSender(producer, "dispatch_voice", fastPolicy(2), logger.NopLogger())

	err := s.Send(context.Background(), Message{ID: "x", Channel: "voice"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch_voice")
	assert.Equal(t, int32(2), atomic.LoadInt32(&producer.calls))
}

func TestNewRegistryFromConfig(t *testing.T) {
	t.Run("log", func(t *testing.T) {
		reg, err := NewRegistryFromConfig(config.SendersConfig{Type: "log"}, nil, logger.NopLogger())
		require.NoError(t, err)
		assert.Len(t, reg.Channels(), 4)
		require.NoError(t, reg.Send(context.Background(), Message{Channel: "whatsapp"}))
	})

	t.Run("broker uses configured topics", func(t *testing.T) {
		producer := broker.NewMemoryProducer()
		cfg := config.SendersConfig{
			Type:   "broker",
			Topics: map[string]string{"sms": "sms_out"},
			Retry:  config.RetryConfig{MaxAttempts: 1},
		}
		reg, err := NewRegistryFromConfig(cfg, producer, logger.NopLogger())
		require.NoError(t, err)

		ctx := context.Background()
		require.NoError(t, reg.Send(ctx, Message{ID: "a", Channel: "sms"}))
		require.NoError(t, reg.Send(ctx, Message{ID: "b", Channel: "voice"}))
		assert.Len(t, producer.Messages("sms_out"), 1)
		assert.Len(t, producer.Messages("dispatch_voice"), 1)
	})

	t.Run("rate limits wrap configured channels", func(t *testing.T) {
		cfg := config.SendersConfig{Type: "log", RateLimits: map[string]float64{"sms": 5, "email": 0}}
		reg, err := NewRegistryFromConfig(cfg, nil, logger.NopLogger())
		require.NoError(t, err)

		sms, _ := reg.Get("sms")
		assert.IsType(t, &ThrottledSender{}, sms)
		email, _ := reg.Get("email")
		assert.IsType(t, &LogSender{}, email)
	})

	t.Run("broker without producer", func(t *testing.T) {
		_, err := NewRegistryFromConfig(config.SendersConfig{Type: "broker"}, nil, logger.NopLogger())
		require.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewRegistryFromConfig(config.SendersConfig{Type: "pigeon"}, nil, logger.NopLogger())
		require.Error(t, err)
	})
}

func TestThrottledSender(t *testing.T) {
	var calls int32
	next := SenderFunc(func(ctx context.Context, msg Message) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	s := NewThrottledSender(next, 1, 1)

	require.NoError(t, s.Send(context.Background(), Message{Channel: "sms"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Send(ctx, Message{Channel: "sms"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sms dispatch throttled")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
