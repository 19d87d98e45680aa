package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/pricing"
)

const maxKeyCollisions = 3

type OrderWriter interface {
	InsertOrder(ctx context.Context, order models.Order) error
	GetOrder(ctx context.Context, id string) (models.Order, error)
}

type Retrier interface {
	Do(ctx context.Context, op func(ctx context.Context) error) error
}

type Service struct {
	store       OrderWriter
	retrier     Retrier
	publisher   events.Publisher
	rates       pricing.Rates
	maxQuantity int
	logger      *zap.Logger
	now         func() time.Time
}

func NewService(store OrderWriter, retrier Retrier, publisher events.Publisher, rates pricing.Rates, maxQuantity int, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		store:       store,
		retrier:     retrier,
		publisher:   publisher,
		rates:       rates,
		maxQuantity: maxQuantity,
		logger:      logger.Named("order"),
		now:         time.Now,
	}
}

// PlaceOrder validates and prices a draft, then stores it as a pending order.
func (s *Service) PlaceOrder(ctx context.Context, userID string, draft Draft) (models.Order, error) {
	if err := ValidateDraft(draft, s.maxQuantity); err != nil {
		return models.Order{}, err
	}
	if userID == "" && draft.LoyaltyPoints > 0 {
		return models.Order{}, invalid("loyaltyPoints", "loyalty points require a signed-in customer")
	}

	createdAt := s.now()
	order := models.Order{
		ID:            models.NewOrderID(createdAt),
		OrderNumber:   models.NewOrderNumber(createdAt),
		CheckoutID:    uuid.NewString(),
		UserID:        userID,
		Items:         normalizeItems(draft.Items),
		DeliveryType:  draft.DeliveryType,
		Contact:       trimContact(draft.Contact),
		PaymentMethod: draft.PaymentMethod,
		Status:        models.StatusPending,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	if draft.DeliveryType == models.DeliveryTypeDelivery {
		addr := *draft.Address
		addr.Neighborhood = strings.TrimSpace(addr.Neighborhood)
		addr.Street = strings.TrimSpace(addr.Street)
		addr.Details = strings.TrimSpace(addr.Details)
		order.Address = &addr
	}
	order.Pricing = pricing.Calculate(order.Items, order.DeliveryType, s.rates, pricing.Adjustments{
		DiscountAmount: draft.Discount,
		LoyaltyPoints:  draft.LoyaltyPoints,
	})
	if order.Pricing.DiscountAmount+order.Pricing.LoyaltyDiscount > order.Pricing.Subtotal {
		return models.Order{}, invalid("loyaltyPoints", "discounts cannot exceed the order subtotal")
	}

	if err := s.insert(ctx, &order); err != nil {
		return models.Order{}, fmt.Errorf("store order: %w", err)
	}

	metrics.RecordOrderCreated(string(order.DeliveryType))
	if userID != "" {
		s.logger.Info("order created for user", zap.String("order_id", order.ID), zap.String("user_id", userID), zap.Int64("total", order.Pricing.Total))
	} else {
		s.logger.Info("guest order created", zap.String("order_id", order.ID), zap.Int64("total", order.Pricing.Total))
	}

	if err := s.publisher.PublishOrderEvent(ctx, events.OrderEvent{
		EventType:   events.OrderCreated,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      string(order.Status),
		Total:       order.Pricing.Total,
		OccurredAt:  order.CreatedAt,
	}); err != nil {
		s.logger.Warn("order_created event not published", zap.String("order_id", order.ID), zap.Error(err))
	}

	return order, nil
}

// insert stores the order, moving its timestamp-derived keys forward when
// another order already took the same millisecond. A duplicate that carries
// our own checkout id is a write that landed before its acknowledgement was
// lost, so it counts as stored.
func (s *Service) insert(ctx context.Context, order *models.Order) error {
	var err error
	for i := 0; i < maxKeyCollisions; i++ {
		err = s.retrier.Do(ctx, func(ctx context.Context) error {
			return s.store.InsertOrder(ctx, *order)
		})
		if !errors.Is(err, database.ErrDuplicateOrder) {
			return err
		}

		stored, getErr := s.lookup(ctx, order.ID)
		if getErr != nil {
			return fmt.Errorf("check duplicate order %s: %w", order.ID, getErr)
		}
		if stored.CheckoutID == order.CheckoutID {
			s.logger.Info("order already stored by an earlier attempt", zap.String("order_id", order.ID))
			return nil
		}

		order.CreatedAt = order.CreatedAt.Add(time.Millisecond)
		order.UpdatedAt = order.CreatedAt
		order.ID = models.NewOrderID(order.CreatedAt)
		order.OrderNumber = models.NewOrderNumber(order.CreatedAt)
	}
	return err
}

func (s *Service) lookup(ctx context.Context, id string) (models.Order, error) {
	var stored models.Order
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		stored, err = s.store.GetOrder(ctx, id)
		return err
	})
	return stored, err
}

func normalizeItems(items []models.OrderItem) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		item.Name = strings.TrimSpace(item.Name)
		item.Size = strings.TrimSpace(item.Size)
		item.Crust = strings.TrimSpace(item.Crust)
		item.Extras = normalizeExtras(item.Extras)
		out = append(out, item)
	}
	return out
}

// normalizeExtras treats extras as a set.
func normalizeExtras(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		name := strings.TrimSpace(v)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func trimContact(c models.Contact) models.Contact {
	return models.Contact{
		FullName: strings.TrimSpace(c.FullName),
		Phone:    strings.TrimSpace(c.Phone),
		Email:    strings.TrimSpace(c.Email),
	}
}
