package events

import "time"

const (
	OrderCreated       = "order_created"
	OrderStatusChanged = "order_status_changed"

	PaymentSucceeded = "payment_succeeded"
	PaymentFailed    = "payment_failed"
	PaymentRefunded  = "payment_refunded"
)

// OrderEvent is published whenever an order is created or changes status.
type OrderEvent struct {
	EventType      string    `json:"event_type"`
	OrderID        string    `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	UserID         string    `json:"user_id,omitempty"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Total          int64     `json:"total"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// PaymentEvent is consumed from the payment topic; it is produced by the
// gateway webhook relay.
type PaymentEvent struct {
	EventType       string `json:"event_type"`
	PaymentIntentID string `json:"payment_intent_id"`
	OrderID         string `json:"order_id"`
	Status          string `json:"status"`
	// Amount is in the gateway's minor units; zero when the relay omits it.
	Amount   int64  `json:"amount,omitempty"`
	Currency string `json:"currency,omitempty"`
}
