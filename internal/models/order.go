package models

import (
	"fmt"
	"time"
)

type DeliveryType string

const (
	DeliveryTypePickup   DeliveryType = "pickup"
	DeliveryTypeDelivery DeliveryType = "delivery"
)

func (d DeliveryType) Valid() bool {
	return d == DeliveryTypePickup || d == DeliveryTypeDelivery
}

type PaymentMethod string

const (
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
	PaymentMethodCash        PaymentMethod = "cash"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentMethodCard, PaymentMethodMobileMoney, PaymentMethodCash:
		return true
	}
	return false
}

// OrderItem represents a single product entry within an order. UnitPrice is
// expressed in the store currency's own unit.
type OrderItem struct {
	ProductID string   `bson:"productId" json:"productId"`
	Name      string   `bson:"name" json:"name"`
	UnitPrice int64    `bson:"unitPrice" json:"unitPrice"`
	Quantity  int      `bson:"quantity" json:"quantity"`
	Size      string   `bson:"size,omitempty" json:"size,omitempty"`
	Crust     string   `bson:"crust,omitempty" json:"crust,omitempty"`
	Extras    []string `bson:"extras,omitempty" json:"extras,omitempty"`
}

// Address is required only for delivery orders.
type Address struct {
	Neighborhood string `bson:"neighborhood" json:"neighborhood"`
	Street       string `bson:"street" json:"street"`
	Details      string `bson:"details,omitempty" json:"details,omitempty"`
}

type Contact struct {
	FullName string `bson:"fullName" json:"fullName"`
	Phone    string `bson:"phone" json:"phone"`
	Email    string `bson:"email,omitempty" json:"email,omitempty"`
}

type OrderPricing struct {
	Subtotal        int64 `bson:"subtotal" json:"subtotal"`
	DeliveryFee     int64 `bson:"deliveryFee" json:"deliveryFee"`
	TaxAmount       int64 `bson:"taxAmount" json:"taxAmount"`
	DiscountAmount  int64 `bson:"discountAmount" json:"discountAmount"`
	LoyaltyDiscount int64 `bson:"loyaltyDiscount" json:"loyaltyDiscount"`
	Total           int64 `bson:"total" json:"total"`
}

// StatusChange is one entry of an order's status audit trail.
type StatusChange struct {
	From   OrderStatus `bson:"from" json:"from"`
	To     OrderStatus `bson:"to" json:"to"`
	Event  string      `bson:"event" json:"event"`
	Reason string      `bson:"reason,omitempty" json:"reason,omitempty"`
	At     time.Time   `bson:"at" json:"at"`
}

// Order defines the persisted order document. After creation only Status,
// StatusHistory, PaymentIntentID and UpdatedAt change. CheckoutID identifies
// the checkout request that created the order.
type Order struct {
	ID              string         `bson:"_id" json:"id"`
	OrderNumber     string         `bson:"orderNumber" json:"orderNumber"`
	CheckoutID      string         `bson:"checkoutId" json:"-"`
	UserID          string         `bson:"userId,omitempty" json:"userId,omitempty"`
	Items           []OrderItem    `bson:"items" json:"items"`
	DeliveryType    DeliveryType   `bson:"deliveryType" json:"deliveryType"`
	Address         *Address       `bson:"address,omitempty" json:"address,omitempty"`
	Contact         Contact        `bson:"contact" json:"contact"`
	PaymentMethod   PaymentMethod  `bson:"paymentMethod" json:"paymentMethod"`
	PaymentIntentID string         `bson:"paymentIntentId,omitempty" json:"paymentIntentId,omitempty"`
	Pricing         OrderPricing   `bson:"pricing" json:"pricing"`
	Status          OrderStatus    `bson:"status" json:"status"`
	StatusHistory   []StatusChange `bson:"statusHistory,omitempty" json:"statusHistory,omitempty"`
	CreatedAt       time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// NewOrderID keys an order by its creation time.
func NewOrderID(createdAt time.Time) string {
	return fmt.Sprintf("order_%d", createdAt.UnixMilli())
}

// NewOrderNumber renders the human-readable number printed on receipts,
// e.g. ORD-250314-183205-417.
func NewOrderNumber(createdAt time.Time) string {
	return fmt.Sprintf("ORD-%s-%03d", createdAt.UTC().Format("060102-150405"), createdAt.Nanosecond()/int(time.Millisecond))
}
