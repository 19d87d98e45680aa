package orderflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/metrics"
	"storefront/internal/models"
)

const maxConflictRetries = 3

// ErrPaymentMismatch marks a payment whose amount or currency differs from
// the order total.
var ErrPaymentMismatch = errors.New("payment does not match order total")

type OrderStore interface {
	GetOrder(ctx context.Context, id string) (models.Order, error)
	UpdateOrderStatus(ctx context.Context, order models.Order, expected models.OrderStatus) error
	FindByPaymentIntent(ctx context.Context, intentID string) (models.Order, error)
	AttachPaymentIntent(ctx context.Context, orderID, intentID string) error
}

type Retrier interface {
	Do(ctx context.Context, op func(ctx context.Context) error) error
}

// PaymentRecorder merges gateway-reported statuses into the payment
// intent snapshot.
type PaymentRecorder interface {
	RecordStatus(ctx context.Context, intentID, status string) error
}

// StatsInvalidator drops cached per-customer figures after an order moves.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// AmountNormalizer converts an order total into the gateway's minor units.
type AmountNormalizer interface {
	Normalize(amount float64, currency string) (int64, error)
}

type Option func(*Service)

func WithStatsInvalidator(stats StatsInvalidator) Option {
	return func(s *Service) {
		s.stats = stats
	}
}

// WithAmountCheck makes HandlePayment refuse to confirm an order when a
// reported payment amount differs from the order total in currency.
func WithAmountCheck(normalizer AmountNormalizer, currency string) Option {
	return func(s *Service) {
		s.normalizer = normalizer
		s.currency = currency
	}
}

// Service applies lifecycle events to stored orders. Writes are
// compare-and-set on the previous status, so two concurrent events cannot
// both move the same order.
type Service struct {
	store     OrderStore
	retrier   Retrier
	publisher events.Publisher
	payments  PaymentRecorder
	logger    *zap.Logger
	now       func() time.Time

	stats      StatsInvalidator
	normalizer AmountNormalizer
	currency   string
}

func NewService(store OrderStore, retrier Retrier, publisher events.Publisher, payments PaymentRecorder, logger *zap.Logger, opts ...Option) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	s := &Service{
		store:     store,
		retrier:   retrier,
		publisher: publisher,
		payments:  payments,
		logger:    logger.Named("orderflow"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transition loads the order, applies event and stores the result.
func (s *Service) Transition(ctx context.Context, orderID string, event Event) (models.Order, error) {
	var lastErr error
	for i := 0; i < maxConflictRetries; i++ {
		var current models.Order
		err := s.retrier.Do(ctx, func(ctx context.Context) error {
			var err error
			current, err = s.store.GetOrder(ctx, orderID)
			return err
		})
		if err != nil {
			return models.Order{}, err
		}

		next, err := s.apply(ctx, current, event)
		if errors.Is(err, database.ErrStatusConflict) {
			lastErr = err
			continue
		}
		return next, err
	}
	metrics.RecordTransition(string(event.Kind), "conflict")
	return models.Order{}, lastErr
}

func (s *Service) apply(ctx context.Context, current models.Order, event Event) (models.Order, error) {
	next, err := Apply(current, event, s.now())
	if err != nil {
		metrics.RecordTransition(string(event.Kind), "rejected")
		return current, err
	}

	err = s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.store.UpdateOrderStatus(ctx, next, current.Status)
	})
	if err != nil {
		if errors.Is(err, database.ErrStatusConflict) {
			s.logger.Info("order changed underneath transition, reloading",
				zap.String("order_id", current.ID), zap.String("event", string(event.Kind)))
		}
		return current, err
	}

	metrics.RecordTransition(string(event.Kind), "applied")
	if s.stats != nil && next.UserID != "" {
		s.stats.Invalidate(ctx, next.UserID)
	}
	s.logger.Info("order status changed",
		zap.String("order_id", next.ID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next.Status)),
		zap.String("event", string(event.Kind)),
	)

	if err := s.publisher.PublishOrderEvent(ctx, events.OrderEvent{
		EventType:      events.OrderStatusChanged,
		OrderID:        next.ID,
		OrderNumber:    next.OrderNumber,
		UserID:         next.UserID,
		Status:         string(next.Status),
		PreviousStatus: string(current.Status),
		Total:          next.Pricing.Total,
		OccurredAt:     next.UpdatedAt,
	}); err != nil {
		s.logger.Warn("order_status_changed event not published", zap.String("order_id", next.ID), zap.Error(err))
	}
	return next, nil
}

// HandlePayment reacts to a gateway payment outcome. Redelivered events are
// absorbed: an order that already moved past the event is left alone.
func (s *Service) HandlePayment(ctx context.Context, event events.PaymentEvent) error {
	order, err := s.orderForPayment(ctx, event)
	if err != nil {
		return err
	}

	if s.payments != nil && event.PaymentIntentID != "" && event.Status != "" {
		if err := s.payments.RecordStatus(ctx, event.PaymentIntentID, event.Status); err != nil {
			s.logger.Warn("payment status not recorded",
				zap.String("payment_intent_id", event.PaymentIntentID), zap.Error(err))
		}
	}

	var transition Event
	switch event.EventType {
	case events.PaymentSucceeded:
		if err := s.checkAmount(order, event); err != nil {
			metrics.RecordTransition(string(EventConfirmPayment), "amount_mismatch")
			s.logger.Error("payment amount does not match order, not confirming",
				zap.Bool("critical", true),
				zap.String("order_id", order.ID),
				zap.String("payment_intent_id", event.PaymentIntentID),
				zap.Int64("paid", event.Amount),
				zap.String("currency", event.Currency),
				zap.Int64("order_total", order.Pricing.Total),
				zap.Error(err),
			)
			return err
		}
		transition = ConfirmPayment()
	case events.PaymentRefunded:
		transition = Refund("payment refunded")
	case events.PaymentFailed:
		s.logger.Info("payment failed, order stays pending",
			zap.String("order_id", order.ID), zap.String("payment_intent_id", event.PaymentIntentID))
		return nil
	default:
		return fmt.Errorf("unsupported payment event %q", event.EventType)
	}

	_, err = s.Transition(ctx, order.ID, transition)
	if errors.Is(err, ErrInvalidTransition) {
		s.logger.Info("payment event ignored",
			zap.String("order_id", order.ID), zap.String("event_type", event.EventType), zap.Error(err))
		return nil
	}
	return err
}

func (s *Service) orderForPayment(ctx context.Context, event events.PaymentEvent) (models.Order, error) {
	if event.PaymentIntentID != "" {
		var order models.Order
		err := s.retrier.Do(ctx, func(ctx context.Context) error {
			var err error
			order, err = s.store.FindByPaymentIntent(ctx, event.PaymentIntentID)
			return err
		})
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, database.ErrOrderNotFound) {
			return models.Order{}, err
		}
	}
	if event.OrderID == "" {
		return models.Order{}, fmt.Errorf("payment %s: %w", event.PaymentIntentID, database.ErrOrderNotFound)
	}

	var order models.Order
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.store.GetOrder(ctx, event.OrderID)
		return err
	})
	if err != nil {
		return models.Order{}, err
	}
	if event.PaymentIntentID != "" && order.PaymentIntentID == "" {
		err := s.retrier.Do(ctx, func(ctx context.Context) error {
			return s.store.AttachPaymentIntent(ctx, order.ID, event.PaymentIntentID)
		})
		if err != nil {
			return models.Order{}, err
		}
		order.PaymentIntentID = event.PaymentIntentID
	}
	return order, nil
}

func (s *Service) checkAmount(order models.Order, event events.PaymentEvent) error {
	if s.normalizer == nil || event.Amount == 0 {
		return nil
	}
	if !strings.EqualFold(event.Currency, s.currency) {
		return fmt.Errorf("%w: paid in %q, order priced in %q", ErrPaymentMismatch, event.Currency, s.currency)
	}
	expected, err := s.normalizer.Normalize(float64(order.Pricing.Total), s.currency)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentMismatch, err)
	}
	if event.Amount != expected {
		return fmt.Errorf("%w: paid %d, expected %d", ErrPaymentMismatch, event.Amount, expected)
	}
	return nil
}
