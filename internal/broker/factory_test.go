package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendzz/internal/config"
	"vendzz/internal/logger"
	"vendzz/pkg/models"
)

func TestNewProducer(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.BrokerConfig
		want    interface{}
		wantErr bool
	}{
		{name: "kafka", cfg: config.BrokerConfig{Type: "kafka", Kafka: config.KafkaConfig{Brokers: []string{"localhost:9092"}}}, want: &KafkaProducer{}},
		{name: "memory", cfg: config.BrokerConfig{Type: "memory"}, want: &MemoryProducer{}},
		{name: "unset", cfg: config.BrokerConfig{}, want: &MemoryProducer{}},
		{name: "unknown", cfg: config.BrokerConfig{Type: "rabbitmq"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProducer(tt.cfg, logger.NopLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, p)
			assert.NoError(t, p.Close())
		})
	}
}

func TestNewConsumer(t *testing.T) {
	_, err := NewConsumer(config.BrokerConfig{}, logger.NopLogger())
	assert.ErrorIs(t, err, ErrNoConsumer)

	_, err = NewConsumer(config.BrokerConfig{Type: "rabbitmq"}, logger.NopLogger())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoConsumer)

	c, err := NewConsumer(config.BrokerConfig{Type: "kafka", Kafka: config.KafkaConfig{Brokers: []string{"localhost:9092"}}}, logger.NopLogger())
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}

func TestMemoryProducer(t *testing.T) {
	p := NewMemoryProducer()
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, "t1", models.MessageEnvelope{ID: "a"}))
	require.NoError(t, p.Publish(ctx, "t1", models.MessageEnvelope{ID: "b"}))

	msgs := p.Messages("t1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].ID)
	assert.Empty(t, p.Messages("t2"))

	p.SetErr(errors.New("down"))
	assert.Error(t, p.Publish(ctx, "t1", models.MessageEnvelope{ID: "c"}))
	assert.Len(t, p.Messages("t1"), 2)
}
