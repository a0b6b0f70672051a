// Package logging carries request-scoped log fields through a context.
package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

// Field names as they appear in log output, in emission order.
const (
	TraceIDKey     ctxKey = "trace_id"
	MessageIDKey   ctxKey = "message_id"
	ServiceNameKey ctxKey = "service_name"
	QuizIDKey      ctxKey = "quiz_id"
	CampaignIDKey  ctxKey = "campaign_id"
)

var fieldOrder = []ctxKey{TraceIDKey, MessageIDKey, ServiceNameKey, QuizIDKey, CampaignIDKey}

func with(ctx context.Context, key ctxKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func get(ctx context.Context, key ctxKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return with(ctx, TraceIDKey, traceID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return with(ctx, MessageIDKey, messageID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return with(ctx, ServiceNameKey, serviceName)
}

func WithQuizID(ctx context.Context, quizID string) context.Context {
	return with(ctx, QuizIDKey, quizID)
}

func WithCampaignID(ctx context.Context, campaignID string) context.Context {
	return with(ctx, CampaignIDKey, campaignID)
}

// GetTraceID prefers an explicitly set trace id and falls back to the active
// span's.
func GetTraceID(ctx context.Context) string {
	if id := get(ctx, TraceIDKey); id != "" {
		return id
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

func GetMessageID(ctx context.Context) string   { return get(ctx, MessageIDKey) }
func GetServiceName(ctx context.Context) string { return get(ctx, ServiceNameKey) }
func GetQuizID(ctx context.Context) string      { return get(ctx, QuizIDKey) }
func GetCampaignID(ctx context.Context) string  { return get(ctx, CampaignIDKey) }

// GetLogFields returns the context's fields as zap key/value pairs.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 2*len(fieldOrder))
	for _, key := range fieldOrder {
		var v string
		if key == TraceIDKey {
			v = GetTraceID(ctx)
		} else {
			v = get(ctx, key)
		}
		if v != "" {
			fields = append(fields, string(key), v)
		}
	}
	return fields
}
