// Package sendlog persists scheduled sends to an external log store.
package sendlog

import (
	"context"

	"vendzz/pkg/models"
)

// Recorder appends scheduled sends. Recording the same (campaign, recipient)
// pair twice must not create a second entry.
type Recorder interface {
	Record(ctx context.Context, send models.ScheduledSend) error
	UpdateStatus(ctx context.Context, campaignID, recipient string, status models.SendStatus) error
	Backend() string
}

func key(campaignID, recipient string) string {
	return campaignID + ":" + recipient
}
