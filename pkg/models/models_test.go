package models

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendzz/pkg/logging"
)

func TestScheduledSendEnvelopeRoundTripThroughJSON(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	send := ScheduledSend{
		ID:          "s1",
		CampaignID:  "c1",
		Channel:     "sms",
		Recipient:   "5511999998888",
		Message:     "hello",
		Status:      SendStatusScheduled,
		ScheduledAt: at.Add(10 * time.Minute),
		CreatedAt:   at,
		QuizID:      "Q1",
		UserID:      "u1",
	}

	env := NewEnvelope(KindScheduledSend).Payload(send.Payload()).Build()
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded MessageEnvelope
	require.NoError(t, json.Unmarshal(raw, &decoded))

	got, err := ScheduledSendFromEnvelope(decoded)
	require.NoError(t, err)
	assert.Equal(t, send.CampaignID, got.CampaignID)
	assert.Equal(t, send.Recipient, got.Recipient)
	assert.True(t, send.ScheduledAt.Equal(got.ScheduledAt))
	assert.Equal(t, SendStatusScheduled, got.Status)
}

func TestScheduledSendFromEnvelope_MissingFields(t *testing.T) {
	_, err := ScheduledSendFromEnvelope(MessageEnvelope{Payload: map[string]interface{}{"channel": "sms"}})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestCompletionFromEnvelope(t *testing.T) {
	env := MessageEnvelope{
		ID: "m1",
		Payload: map[string]interface{}{
			"quiz_id": "Q1",
			"phone":   "(11) 99999-8888",
			"user_id": "u1",
			"answers": map[string]interface{}{"score": 3.0},
		},
	}
	p, err := CompletionFromEnvelope(env)
	require.NoError(t, err)
	assert.Equal(t, "Q1", p.QuizID)
	assert.Equal(t, 3.0, p.Answers["score"])

	_, err = CompletionFromEnvelope(MessageEnvelope{Payload: map[string]interface{}{}})
	assert.Error(t, err)
}

func TestEnvelopeBuilder(t *testing.T) {
	env := NewEnvelope(KindDispatch).Source("dispatch-service").Field("channel", "sms").Build()
	assert.NotEmpty(t, env.ID)
	assert.False(t, env.Timestamp.IsZero())
	assert.Equal(t, "sms", env.StringField("channel"))
	assert.Empty(t, env.Metadata.TraceID)
	assert.NoError(t, ValidateMessageEnvelope(&env))
	assert.Error(t, ValidateMessageEnvelope(nil))

	traced := NewEnvelope(KindDispatch).Traced(logging.WithTraceID(context.Background(), "t-9")).Build()
	assert.Equal(t, "t-9", traced.Metadata.TraceID)
}
