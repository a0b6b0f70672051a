package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureSendLogIndexes creates the indexes backing the MongoDB send log.
// The unique (campaign_id, recipient) index makes repeated writes idempotent.
func EnsureSendLogIndexes(ctx context.Context, db *mongo.Database, collection string) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "campaign_id", Value: 1}, {Key: "recipient", Value: 1}},
			Options: options.Index().SetName("idx_scheduled_sends_campaign_recipient").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "scheduled_at", Value: 1}},
			Options: options.Index().SetName("idx_scheduled_sends_status_scheduled_at"),
		},
		{
			Keys:    bson.D{{Key: "quiz_id", Value: 1}},
			Options: options.Index().SetName("idx_scheduled_sends_quiz_id"),
		},
	}

	_, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
