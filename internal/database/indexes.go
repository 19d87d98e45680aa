package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func EnsureOrderIndexes(db *mongo.Database, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection(ordersCollection).Indexes()

	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("userId_createdAt"),
		},
		{
			Keys: bson.D{{Key: "orderNumber", Value: 1}},
			Options: options.Index().
				SetName("orderNumber_unique").
				SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "paymentIntentId", Value: 1}},
			Options: options.Index().
				SetName("paymentIntentId_index").
				SetPartialFilterExpression(bson.M{
					"paymentIntentId": bson.M{"$exists": true},
				}),
		},
	}

	logger.Info("creating order indexes")
	if _, err := indexes.CreateMany(ctx, models); err != nil {
		logger.Error("order index error", zap.Error(err))
		return err
	}
	logger.Info("order indexes created")
	return nil
}

func EnsurePaymentIntentIndexes(db *mongo.Database, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection(paymentIntentsCollection).Indexes()

	orderRefIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "orderReference", Value: 1}},
		Options: options.Index().SetName("orderReference_index"),
	}

	logger.Info("creating orderReference_index index")
	if _, err := indexes.CreateOne(ctx, orderRefIndex); err != nil {
		logger.Error("payment intent index error", zap.Error(err))
		return err
	}
	logger.Info("orderReference_index index created")
	return nil
}
