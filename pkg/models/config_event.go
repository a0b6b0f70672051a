package models

import "time"

// CampaignUpdateEvent announces that a campaign was created, changed or
// toggled so cached campaign lists for its quiz can be dropped.
type CampaignUpdateEvent struct {
	EventType  string    `json:"event_type"`
	Channel    string    `json:"channel"`
	CampaignID string    `json:"campaign_id,omitempty"`
	QuizID     string    `json:"quiz_id,omitempty"`
	Action     string    `json:"action"`
	Timestamp  time.Time `json:"timestamp"`
	ChangedBy  string    `json:"changed_by,omitempty"`
}

const (
	EventTypeCampaignUpdated = "campaign_updated"
	EventTypeCampaignsReload = "campaigns_reload"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionToggle = "toggle"
	ActionReload = "reload"
)
