package models

import "time"

// PaymentIntentRecord is the local reconciliation snapshot of a gateway
// payment intent, keyed by the gateway's own intent id. The gateway stays the
// source of truth for Status and Amount.
type PaymentIntentRecord struct {
	PaymentIntentID string            `bson:"_id" json:"paymentIntentId"`
	Status          string            `bson:"status" json:"status"`
	Amount          int64             `bson:"amount" json:"amount"`
	Currency        string            `bson:"currency" json:"currency"`
	Metadata        map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
	OrderReference  string            `bson:"orderReference,omitempty" json:"orderReference,omitempty"`
	CustomerEmail   string            `bson:"customerEmail,omitempty" json:"customerEmail,omitempty"`
	OrderSnapshot   map[string]any    `bson:"orderSnapshot,omitempty" json:"orderSnapshot,omitempty"`
	CreatedAt       time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// AccountStats summarises a customer's order history.
type AccountStats struct {
	TotalOrders       int64      `json:"totalOrders"`
	TotalSpent        int64      `json:"totalSpent"`
	AverageOrderValue float64    `json:"averageOrderValue"`
	LastOrderAt       *time.Time `json:"lastOrderAt"`
}
