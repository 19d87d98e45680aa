package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storefront/internal/retry"
)

func TestKafkaPublisherSendsOrderEvent(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event OrderEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.EventType != OrderStatusChanged || event.OrderID != "order_1" || event.Status != "confirmed" {
			return errors.New("unexpected event payload: " + string(val))
		}
		return nil
	})

	publisher := NewKafkaPublisher(producer, "order_events", zaptest.NewLogger(t))
	err := publisher.PublishOrderEvent(context.Background(), OrderEvent{
		EventType:      OrderStatusChanged,
		OrderID:        "order_1",
		Status:         "confirmed",
		PreviousStatus: "pending",
		OccurredAt:     time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, producer.Close())
}

func TestKafkaPublisherPropagatesSendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewKafkaPublisher(producer, "order_events", zaptest.NewLogger(t))
	err := publisher.PublishOrderEvent(context.Background(), OrderEvent{EventType: OrderCreated, OrderID: "order_2"})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, producer.Close())
}

type handlerFunc func(ctx context.Context, event PaymentEvent) error

func (f handlerFunc) HandlePayment(ctx context.Context, event PaymentEvent) error { return f(ctx, event) }

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func newClaim(t *testing.T, events ...any) *fakeClaim {
	t.Helper()
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, len(events))}
	for i, event := range events {
		var value []byte
		switch e := event.(type) {
		case string:
			value = []byte(e)
		default:
			var err error
			value, err = json.Marshal(e)
			require.NoError(t, err)
		}
		claim.messages <- &sarama.ConsumerMessage{Topic: "payment_events", Offset: int64(i), Value: value}
	}
	close(claim.messages)
	return claim
}

func succeeded(intentID string) PaymentEvent {
	return PaymentEvent{EventType: PaymentSucceeded, PaymentIntentID: intentID, OrderID: "order_1", Status: "succeeded"}
}

func TestPaymentConsumerMarksHandledMessages(t *testing.T) {
	var received []PaymentEvent
	handler := handlerFunc(func(_ context.Context, event PaymentEvent) error {
		received = append(received, event)
		return nil
	})
	consumer := NewPaymentConsumer(nil, "payment_events", handler, zaptest.NewLogger(t))
	session := &fakeSession{ctx: context.Background()}

	err := consumer.ConsumeClaim(session, newClaim(t, "not json", succeeded("pi_1")))
	require.NoError(t, err)

	require.Len(t, received, 1)
	assert.Equal(t, "pi_1", received[0].PaymentIntentID)
	// malformed payloads are dropped, not retried forever
	assert.Equal(t, []int64{0, 1}, session.marked)
}

func TestPaymentConsumerLeavesTransientFailuresUncommitted(t *testing.T) {
	handler := handlerFunc(func(_ context.Context, event PaymentEvent) error {
		if event.PaymentIntentID == "pi_2" {
			return fmt.Errorf("load order: %w", &retry.ExhaustedError{Attempts: 4, Err: errors.New("server selection timeout")})
		}
		return nil
	})
	consumer := NewPaymentConsumer(nil, "payment_events", handler, zaptest.NewLogger(t))
	session := &fakeSession{ctx: context.Background()}

	err := consumer.ConsumeClaim(session, newClaim(t, succeeded("pi_1"), succeeded("pi_2"), succeeded("pi_3")))
	require.Error(t, err)

	var exhausted *retry.ExhaustedError
	assert.ErrorAs(t, err, &exhausted)
	assert.Equal(t, []int64{0}, session.marked)
}

func TestPaymentConsumerDropsPermanentFailures(t *testing.T) {
	handler := handlerFunc(func(context.Context, PaymentEvent) error {
		return errors.New("order not found")
	})
	consumer := NewPaymentConsumer(nil, "payment_events", handler, zaptest.NewLogger(t))
	session := &fakeSession{ctx: context.Background()}

	require.NoError(t, consumer.ConsumeClaim(session, newClaim(t, succeeded("pi_1"))))
	assert.Equal(t, []int64{0}, session.marked)
}

func TestPaymentConsumerStopsOnCancel(t *testing.T) {
	handler := handlerFunc(func(ctx context.Context, _ PaymentEvent) error {
		return ctx.Err()
	})
	consumer := NewPaymentConsumer(nil, "payment_events", handler, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	session := &fakeSession{ctx: ctx}

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage)}
	require.NoError(t, consumer.ConsumeClaim(session, claim))
	assert.Empty(t, session.marked)
}

type fakeGroup struct {
	sarama.ConsumerGroup
	errors  chan error
	topics  [][]string
	results []error
}

func (g *fakeGroup) Errors() <-chan error { return g.errors }

func (g *fakeGroup) Consume(_ context.Context, topics []string, _ sarama.ConsumerGroupHandler) error {
	g.topics = append(g.topics, topics)
	err := g.results[0]
	g.results = g.results[1:]
	return err
}

func TestPaymentConsumerRunRejoinsUntilGroupCloses(t *testing.T) {
	group := &fakeGroup{
		errors:  make(chan error),
		results: []error{nil, sarama.ErrOutOfBrokers, sarama.ErrClosedConsumerGroup},
	}
	defer close(group.errors)

	consumer := NewPaymentConsumer(group, "payment_events", handlerFunc(func(context.Context, PaymentEvent) error { return nil }), zaptest.NewLogger(t))
	require.NoError(t, consumer.Run(context.Background()))

	require.Len(t, group.topics, 3)
	assert.Equal(t, []string{"payment_events"}, group.topics[0])
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.PublishOrderEvent(context.Background(), OrderEvent{}))
}
