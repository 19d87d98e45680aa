package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

// PaymentIntentStore keeps one document per gateway intent id. Every write
// is an upsert that merges fields, so replays are harmless.
type PaymentIntentStore struct {
	collection *mongo.Collection
}

func NewPaymentIntentStore(db *mongo.Database) *PaymentIntentStore {
	return &PaymentIntentStore{collection: db.Collection(paymentIntentsCollection)}
}

func (s *PaymentIntentStore) UpsertPaymentIntent(ctx context.Context, record models.PaymentIntentRecord) error {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	set := bson.M{
		"status":    record.Status,
		"amount":    record.Amount,
		"currency":  record.Currency,
		"updatedAt": updatedAt,
	}
	if len(record.Metadata) > 0 {
		set["metadata"] = record.Metadata
	}
	if record.OrderReference != "" {
		set["orderReference"] = record.OrderReference
	}
	if record.CustomerEmail != "" {
		set["customerEmail"] = record.CustomerEmail
	}
	if len(record.OrderSnapshot) > 0 {
		set["orderSnapshot"] = record.OrderSnapshot
	}

	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": record.PaymentIntentID},
		bson.M{
			"$set":         set,
			"$setOnInsert": bson.M{"createdAt": createdAt},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert payment intent %s: %w", record.PaymentIntentID, err)
	}
	return nil
}

func (s *PaymentIntentStore) UpdatePaymentIntentStatus(ctx context.Context, intentID, status string) error {
	now := time.Now()
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": intentID},
		bson.M{
			"$set":         bson.M{"status": status, "updatedAt": now},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("update payment intent %s: %w", intentID, err)
	}
	return nil
}
