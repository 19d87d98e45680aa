package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"storefront/internal/retry"
)

// PaymentHandler reacts to gateway payment outcomes.
type PaymentHandler interface {
	HandlePayment(ctx context.Context, event PaymentEvent) error
}

// PaymentConsumer feeds payment events from every partition of the topic to a
// handler as a member of a consumer group. An offset is committed only once
// the handler is done with the message; transient failures leave it
// uncommitted so the message is delivered again.
type PaymentConsumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler PaymentHandler
	logger  *zap.Logger
}

func NewConsumerGroup(brokers []string, groupID string, logger *zap.Logger) (sarama.ConsumerGroup, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer group: %w", err)
	}

	logger.Info("Kafka consumer group initialized",
		zap.Strings("brokers", brokers),
		zap.String("group", groupID),
	)
	return group, nil
}

func NewPaymentConsumer(group sarama.ConsumerGroup, topic string, handler PaymentHandler, logger *zap.Logger) *PaymentConsumer {
	return &PaymentConsumer{
		group:   group,
		topic:   topic,
		handler: handler,
		logger:  logger.Named("payment-consumer"),
	}
}

// Run joins the group and blocks until ctx is cancelled or the group is closed.
func (c *PaymentConsumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("Kafka consumer error", zap.Error(err))
		}
	}()

	c.logger.Info("Kafka consumer started", zap.String("topic", c.topic))

	for {
		// Consume returns on every rebalance; loop to rejoin.
		if err := c.group.Consume(ctx, []string{c.topic}, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("consumer group session ended", zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *PaymentConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

func (c *PaymentConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (c *PaymentConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			err := c.handleMessage(ctx, message)
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled):
				return nil
			case isTransient(err):
				c.logger.Warn("payment event will be redelivered",
					zap.Int32("partition", message.Partition),
					zap.Int64("offset", message.Offset),
					zap.Error(err),
				)
				return err
			default:
				c.logger.Error("dropping payment event",
					zap.Int32("partition", message.Partition),
					zap.Int64("offset", message.Offset),
					zap.Bool("critical", true),
					zap.Error(err),
				)
			}
			session.MarkMessage(message, "")
		}
	}
}

var errMalformedEvent = errors.New("malformed payment event")

func (c *PaymentConsumer) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	var event PaymentEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if event.EventType == "" || event.PaymentIntentID == "" {
		return errMalformedEvent
	}
	return c.handler.HandlePayment(ctx, event)
}

func isTransient(err error) bool {
	var exhausted *retry.ExhaustedError
	return errors.As(err, &exhausted) || errors.Is(err, context.DeadlineExceeded)
}
