package sendlog

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vendzz/pkg/models"
)

type MongoRecorder struct {
	collection *mongo.Collection
}

func NewMongoRecorder(db *mongo.Database, collection string) *MongoRecorder {
	return &MongoRecorder{collection: db.Collection(collection)}
}

// Record upserts on (campaign_id, recipient) with $setOnInsert so an existing
// document is never overwritten.
func (r *MongoRecorder) Record(ctx context.Context, send models.ScheduledSend) error {
	filter := bson.M{"campaign_id": send.CampaignID, "recipient": send.Recipient}
	update := bson.M{"$setOnInsert": send}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("failed to upsert scheduled send: %w", err)
	}
	return nil
}

func (r *MongoRecorder) UpdateStatus(ctx context.Context, campaignID, recipient string, status models.SendStatus) error {
	filter := bson.M{"campaign_id": campaignID, "recipient": recipient}
	update := bson.M{"$set": bson.M{"status": status}}

	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to update send status: %w", err)
	}
	return nil
}

func (r *MongoRecorder) Backend() string {
	return "mongodb"
}

func (r *MongoRecorder) Get(ctx context.Context, campaignID, recipient string) (*models.ScheduledSend, error) {
	var s models.ScheduledSend
	err := r.collection.FindOne(ctx, bson.M{"campaign_id": campaignID, "recipient": recipient}).Decode(&s)
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduled send: %w", err)
	}
	return &s, nil
}

func (r *MongoRecorder) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}
