package orderflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/payments"
	"storefront/internal/retry"
)

type capturePublisher struct {
	events []events.OrderEvent
}

func (p *capturePublisher) PublishOrderEvent(_ context.Context, event events.OrderEvent) error {
	p.events = append(p.events, event)
	return nil
}

type recordedStatus struct {
	intentID string
	status   string
}

type captureRecorder struct {
	calls []recordedStatus
}

func (r *captureRecorder) RecordStatus(_ context.Context, intentID, status string) error {
	r.calls = append(r.calls, recordedStatus{intentID, status})
	return nil
}

// racingStore moves the order once behind the caller's back before the
// first compare-and-set lands.
type racingStore struct {
	*database.MemoryStore
	raced bool
}

func (s *racingStore) UpdateOrderStatus(ctx context.Context, order models.Order, expected models.OrderStatus) error {
	if !s.raced {
		s.raced = true
		current, _ := s.MemoryStore.GetOrder(ctx, order.ID)
		moved, err := Apply(current, AdvanceFulfillment(models.StatusPreparing), time.Now())
		if err != nil {
			return err
		}
		if err := s.MemoryStore.UpdateOrderStatus(ctx, moved, current.Status); err != nil {
			return err
		}
	}
	return s.MemoryStore.UpdateOrderStatus(ctx, order, expected)
}

func seedOrder(t *testing.T, store *database.MemoryStore, status models.OrderStatus, intentID string) models.Order {
	t.Helper()
	order := models.Order{
		ID:              "order_1741977125417",
		OrderNumber:     "ORD-250314-183205-417",
		UserID:          "user-1",
		DeliveryType:    models.DeliveryTypeDelivery,
		Status:          status,
		PaymentIntentID: intentID,
		Pricing:         models.OrderPricing{Total: 11000},
	}
	require.NoError(t, store.InsertOrder(context.Background(), order))
	return order
}

type captureInvalidator struct {
	users []string
}

func (c *captureInvalidator) Invalidate(_ context.Context, userID string) {
	c.users = append(c.users, userID)
}

func newTestFlow(t *testing.T, store OrderStore, pub events.Publisher, rec PaymentRecorder, opts ...Option) *Service {
	return NewService(store, retry.New(retry.WithBase(time.Millisecond), retry.WithClassifier(database.ClassifyMongoError)), pub, rec, zaptest.NewLogger(t), opts...)
}

func TestTransitionPersistsAndPublishes(t *testing.T) {
	store := database.NewMemoryStore()
	order := seedOrder(t, store, models.StatusConfirmed, "")
	pub := &capturePublisher{}
	svc := newTestFlow(t, store, pub, nil)

	next, err := svc.Transition(context.Background(), order.ID, AdvanceFulfillment(models.StatusPreparing))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, next.Status)

	stored, err := store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, stored.Status)
	require.Len(t, stored.StatusHistory, 1)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.OrderStatusChanged, pub.events[0].EventType)
	assert.Equal(t, "confirmed", pub.events[0].PreviousStatus)
	assert.Equal(t, "preparing", pub.events[0].Status)
}

func TestTransitionRejectsInvalidEvent(t *testing.T) {
	store := database.NewMemoryStore()
	order := seedOrder(t, store, models.StatusCompleted, "")
	pub := &capturePublisher{}
	svc := newTestFlow(t, store, pub, nil)

	_, err := svc.Transition(context.Background(), order.ID, Cancel(""))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, pub.events)
}

func TestTransitionUnknownOrder(t *testing.T) {
	svc := newTestFlow(t, database.NewMemoryStore(), nil, nil)
	_, err := svc.Transition(context.Background(), "order_missing", Cancel(""))
	assert.ErrorIs(t, err, database.ErrOrderNotFound)
}

func TestTransitionReloadsAfterConflict(t *testing.T) {
	mem := database.NewMemoryStore()
	order := seedOrder(t, mem, models.StatusConfirmed, "")
	store := &racingStore{MemoryStore: mem}
	svc := newTestFlow(t, store, nil, nil)

	// Cancel still applies on top of the concurrent move to preparing.
	next, err := svc.Transition(context.Background(), order.ID, Cancel("customer asked"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, next.Status)
	require.Len(t, next.StatusHistory, 2)
	assert.Equal(t, models.StatusPreparing, next.StatusHistory[1].From)
}

func TestTransitionConflictRejectsStaleAdvance(t *testing.T) {
	mem := database.NewMemoryStore()
	order := seedOrder(t, mem, models.StatusConfirmed, "")
	store := &racingStore{MemoryStore: mem}
	svc := newTestFlow(t, store, nil, nil)

	_, err := svc.Transition(context.Background(), order.ID, AdvanceFulfillment(models.StatusPreparing))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestHandlePaymentSucceededConfirmsOrder(t *testing.T) {
	store := database.NewMemoryStore()
	order := seedOrder(t, store, models.StatusPending, "pi_123")
	rec := &captureRecorder{}
	svc := newTestFlow(t, store, nil, rec)

	err := svc.HandlePayment(context.Background(), events.PaymentEvent{
		EventType:       events.PaymentSucceeded,
		PaymentIntentID: "pi_123",
		Status:          "succeeded",
	})
	require.NoError(t, err)

	stored, _ := store.GetOrder(context.Background(), order.ID)
	assert.Equal(t, models.StatusConfirmed, stored.Status)
	assert.Equal(t, []recordedStatus{{"pi_123", "succeeded"}}, rec.calls)

	// Redelivery is absorbed.
	err = svc.HandlePayment(context.Background(), events.PaymentEvent{
		EventType:       events.PaymentSucceeded,
		PaymentIntentID: "pi_123",
		Status:          "succeeded",
	})
	assert.NoError(t, err)
}

func TestHandlePaymentAttachesIntentByOrderID(t *testing.T) {
	store := database.NewMemoryStore()
	order := seedOrder(t, store, models.StatusPending, "")
	svc := newTestFlow(t, store, nil, nil)

	err := svc.HandlePayment(context.Background(), events.PaymentEvent{
		EventType:       events.PaymentSucceeded,
		PaymentIntentID: "pi_456",
		OrderID:         order.ID,
	})
	require.NoError(t, err)

	found, err := store.FindByPaymentIntent(context.Background(), "pi_456")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, found.Status)
}

func TestHandlePaymentRefundAndFailure(t *testing.T) {
	store := database.NewMemoryStore()
	order := seedOrder(t, store, models.StatusPreparing, "pi_789")
	svc := newTestFlow(t, store, nil, nil)

	require.NoError(t, svc.HandlePayment(context.Background(), events.PaymentEvent{EventType: events.PaymentFailed, PaymentIntentID: "pi_789"}))
	stored, _ := store.GetOrder(context.Background(), order.ID)
	assert.Equal(t, models.StatusPreparing, stored.Status)

	require.NoError(t, svc.HandlePayment(context.Background(), events.PaymentEvent{EventType: events.PaymentRefunded, PaymentIntentID: "pi_789"}))
	stored, _ = store.GetOrder(context.Background(), order.ID)
	assert.Equal(t, models.StatusRefunded, stored.Status)
}

func TestHandlePaymentUnknownOrder(t *testing.T) {
	svc := newTestFlow(t, database.NewMemoryStore(), nil, nil)
	err := svc.HandlePayment(context.Background(), events.PaymentEvent{EventType: events.PaymentSucceeded, PaymentIntentID: "pi_missing"})
	assert.True(t, errors.Is(err, database.ErrOrderNotFound))
}

func TestRefundFromConsumerInvalidatesStats(t *testing.T) {
	store := database.NewMemoryStore()
	seedOrder(t, store, models.StatusConfirmed, "pi_321")
	stats := &captureInvalidator{}
	svc := newTestFlow(t, store, nil, nil, WithStatsInvalidator(stats))

	require.NoError(t, svc.HandlePayment(context.Background(), events.PaymentEvent{EventType: events.PaymentRefunded, PaymentIntentID: "pi_321"}))
	assert.Equal(t, []string{"user-1"}, stats.users)

	// nothing moved, nothing to invalidate
	require.NoError(t, svc.HandlePayment(context.Background(), events.PaymentEvent{EventType: events.PaymentRefunded, PaymentIntentID: "pi_321"}))
	assert.Len(t, stats.users, 1)
}

func TestHandlePaymentChecksAmount(t *testing.T) {
	store := database.NewMemoryStore()
	order := seedOrder(t, store, models.StatusPending, "pi_amt")
	normalizer := payments.NewAmountNormalizer([]string{"xaf"})
	svc := newTestFlow(t, store, nil, nil, WithAmountCheck(normalizer, "xaf"))

	err := svc.HandlePayment(context.Background(), events.PaymentEvent{
		EventType:       events.PaymentSucceeded,
		PaymentIntentID: "pi_amt",
		Amount:          100,
		Currency:        "xaf",
	})
	assert.ErrorIs(t, err, ErrPaymentMismatch)

	err = svc.HandlePayment(context.Background(), events.PaymentEvent{
		EventType:       events.PaymentSucceeded,
		PaymentIntentID: "pi_amt",
		Amount:          11000,
		Currency:        "usd",
	})
	assert.ErrorIs(t, err, ErrPaymentMismatch)

	stored, _ := store.GetOrder(context.Background(), order.ID)
	assert.Equal(t, models.StatusPending, stored.Status)

	err = svc.HandlePayment(context.Background(), events.PaymentEvent{
		EventType:       events.PaymentSucceeded,
		PaymentIntentID: "pi_amt",
		Amount:          11000,
		Currency:        "XAF",
	})
	require.NoError(t, err)
	stored, _ = store.GetOrder(context.Background(), order.ID)
	assert.Equal(t, models.StatusConfirmed, stored.Status)
}
