package models

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vendzz/pkg/logging"
)

// EnvelopeBuilder assembles an outbound envelope. Build fills a random id
// and the current time when they were not set.
type EnvelopeBuilder struct {
	env MessageEnvelope
}

func NewEnvelope(kind string) *EnvelopeBuilder {
	return &EnvelopeBuilder{env: MessageEnvelope{
		Kind:    kind,
		Payload: make(map[string]interface{}),
	}}
}

func (b *EnvelopeBuilder) ID(id string) *EnvelopeBuilder {
	b.env.ID = id
	return b
}

func (b *EnvelopeBuilder) Source(source string) *EnvelopeBuilder {
	b.env.Source = source
	return b
}

func (b *EnvelopeBuilder) At(ts time.Time) *EnvelopeBuilder {
	b.env.Timestamp = ts
	return b
}

// Payload replaces the payload. A nil map leaves an empty payload.
func (b *EnvelopeBuilder) Payload(payload map[string]interface{}) *EnvelopeBuilder {
	if payload != nil {
		b.env.Payload = payload
	}
	return b
}

func (b *EnvelopeBuilder) Field(name string, value interface{}) *EnvelopeBuilder {
	b.env.Payload[name] = value
	return b
}

// Traced stamps the trace id carried by ctx, if any.
func (b *EnvelopeBuilder) Traced(ctx context.Context) *EnvelopeBuilder {
	b.env.Metadata.TraceID = logging.GetTraceID(ctx)
	return b
}

func (b *EnvelopeBuilder) Build() MessageEnvelope {
	env := b.env
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	return env
}
