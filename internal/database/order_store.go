package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
)

// OrderStore persists orders in the orders collection, keyed by order id.
type OrderStore struct {
	collection *mongo.Collection
}

func NewOrderStore(db *mongo.Database) *OrderStore {
	return &OrderStore{collection: db.Collection(ordersCollection)}
}

func (s *OrderStore) InsertOrder(ctx context.Context, order models.Order) error {
	if _, err := s.collection.InsertOne(ctx, order); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateOrder, order.ID)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *OrderStore) GetOrder(ctx context.Context, id string) (models.Order, error) {
	var order models.Order
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return models.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("find order: %w", err)
	}
	return order, nil
}

// UpdateOrderStatus writes the new status only if the stored status is still
// expected, so two concurrent transitions cannot both apply.
func (s *OrderStore) UpdateOrderStatus(ctx context.Context, order models.Order, expected models.OrderStatus) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": order.ID, "status": expected},
		bson.M{"$set": bson.M{
			"status":        order.Status,
			"statusHistory": order.StatusHistory,
			"updatedAt":     order.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if res.MatchedCount == 0 {
		return s.missingOrConflict(ctx, order.ID)
	}
	return nil
}

func (s *OrderStore) AttachPaymentIntent(ctx context.Context, orderID, intentID string) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": orderID},
		bson.M{"$set": bson.M{"paymentIntentId": intentID, "updatedAt": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("attach payment intent: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *OrderStore) FindByPaymentIntent(ctx context.Context, intentID string) (models.Order, error) {
	var order models.Order
	err := s.collection.FindOne(ctx, bson.M{"paymentIntentId": intentID}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return models.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("find order by payment intent: %w", err)
	}
	return order, nil
}

type statsRow struct {
	TotalOrders int64      `bson:"totalOrders"`
	TotalSpent  int64      `bson:"totalSpent"`
	LastOrderAt *time.Time `bson:"lastOrderAt"`
}

// AccountStats aggregates a customer's orders. Cancelled and refunded orders
// are not counted.
func (s *OrderStore) AccountStats(ctx context.Context, userID string) (models.AccountStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"userId": userID,
			"status": bson.M{"$nin": bson.A{models.StatusCancelled, models.StatusRefunded}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":         nil,
			"totalOrders": bson.M{"$sum": 1},
			"totalSpent":  bson.M{"$sum": "$pricing.total"},
			"lastOrderAt": bson.M{"$max": "$createdAt"},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return models.AccountStats{}, fmt.Errorf("aggregate account stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []statsRow
	if err := cursor.All(ctx, &rows); err != nil {
		return models.AccountStats{}, fmt.Errorf("decode account stats: %w", err)
	}
	if len(rows) == 0 {
		return models.AccountStats{}, nil
	}
	return newAccountStats(rows[0].TotalOrders, rows[0].TotalSpent, rows[0].LastOrderAt), nil
}

func (s *OrderStore) missingOrConflict(ctx context.Context, id string) error {
	n, err := s.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return ErrStatusConflict
}

func newAccountStats(totalOrders, totalSpent int64, lastOrderAt *time.Time) models.AccountStats {
	stats := models.AccountStats{
		TotalOrders: totalOrders,
		TotalSpent:  totalSpent,
		LastOrderAt: lastOrderAt,
	}
	if totalOrders > 0 {
		stats.AverageOrderValue = float64(totalSpent) / float64(totalOrders)
	}
	return stats
}
