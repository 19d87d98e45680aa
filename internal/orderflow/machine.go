// Package orderflow moves orders through their status lifecycle. Apply is
// pure: callers persist the order it returns.
package orderflow

import (
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"
)

var ErrInvalidTransition = errors.New("invalid status transition")

type EventKind string

const (
	EventConfirmPayment     EventKind = "confirmPayment"
	EventAdvanceFulfillment EventKind = "advanceFulfillment"
	EventCancel             EventKind = "cancel"
	EventRefund             EventKind = "refund"
)

type Event struct {
	Kind   EventKind
	Next   models.OrderStatus
	Reason string
}

func ConfirmPayment() Event { return Event{Kind: EventConfirmPayment} }

func AdvanceFulfillment(next models.OrderStatus) Event {
	return Event{Kind: EventAdvanceFulfillment, Next: next}
}

func Cancel(reason string) Event { return Event{Kind: EventCancel, Reason: reason} }

func Refund(reason string) Event { return Event{Kind: EventRefund, Reason: reason} }

// TransitionError describes a rejected event. It matches ErrInvalidTransition.
type TransitionError struct {
	Event EventKind
	From  models.OrderStatus
	To    models.OrderStatus
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("%s not allowed from %s", e.Event, e.From)
	}
	return fmt.Sprintf("%s not allowed from %s to %s", e.Event, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Target resolves the status an event would move the order to, without
// applying it.
func Target(order models.Order, event Event) (models.OrderStatus, error) {
	from := order.Status
	reject := func(to models.OrderStatus) (models.OrderStatus, error) {
		return "", &TransitionError{Event: event.Kind, From: from, To: to}
	}

	switch event.Kind {
	case EventConfirmPayment:
		if from != models.StatusPending {
			return reject(models.StatusConfirmed)
		}
		return models.StatusConfirmed, nil

	case EventAdvanceFulfillment:
		if from.IsTerminal() {
			return reject(event.Next)
		}
		next, ok := nextInFlow(models.FlowFor(order.DeliveryType), from)
		// confirmed is only reachable through payment confirmation
		if !ok || event.Next != next || from == models.StatusPending {
			return reject(event.Next)
		}
		return next, nil

	case EventCancel:
		if from.IsTerminal() {
			return reject(models.StatusCancelled)
		}
		return models.StatusCancelled, nil

	case EventRefund:
		if from.IsTerminal() {
			return reject(models.StatusRefunded)
		}
		return models.StatusRefunded, nil
	}

	return reject(event.Next)
}

// Apply returns a copy of order with the transition applied, or the order
// unchanged and a *TransitionError.
func Apply(order models.Order, event Event, at time.Time) (models.Order, error) {
	to, err := Target(order, event)
	if err != nil {
		return order, err
	}

	history := make([]models.StatusChange, len(order.StatusHistory), len(order.StatusHistory)+1)
	copy(history, order.StatusHistory)
	history = append(history, models.StatusChange{
		From:   order.Status,
		To:     to,
		Event:  string(event.Kind),
		Reason: event.Reason,
		At:     at,
	})

	next := order
	next.Status = to
	next.StatusHistory = history
	next.UpdatedAt = at
	return next, nil
}

func nextInFlow(flow []models.OrderStatus, current models.OrderStatus) (models.OrderStatus, bool) {
	for i, status := range flow {
		if status == current && i+1 < len(flow) {
			return flow[i+1], true
		}
	}
	return "", false
}

// ParseEvent builds an event from its wire name.
func ParseEvent(kind, next, reason string) (Event, error) {
	switch EventKind(kind) {
	case EventConfirmPayment:
		return ConfirmPayment(), nil
	case EventAdvanceFulfillment:
		status, ok := models.ParseOrderStatus(next)
		if !ok {
			return Event{}, fmt.Errorf("unknown status %q", next)
		}
		return AdvanceFulfillment(status), nil
	case EventCancel:
		return Cancel(reason), nil
	case EventRefund:
		return Refund(reason), nil
	}
	return Event{}, fmt.Errorf("unknown event %q", kind)
}
