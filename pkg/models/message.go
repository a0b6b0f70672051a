package models

import "time"

// MessageEnvelope is the JSON document carried on every Kafka topic.
type MessageEnvelope struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Kind      string                 `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  Metadata               `json:"metadata"`
}

type Metadata struct {
	TraceID string `json:"trace_id,omitempty"`
	// DeadLetter is set when the envelope is parked on the DLQ.
	DeadLetter *DeadLetterInfo `json:"dead_letter,omitempty"`
}

type DeadLetterInfo struct {
	Reason      string    `json:"reason"`
	SourceTopic string    `json:"source_topic"`
	At          time.Time `json:"at"`
}

const (
	KindCompletion     = "completion"
	KindScheduledSend  = "scheduled_send"
	KindDispatch       = "dispatch"
	KindCampaignUpdate = "campaign_update"
)
