package database

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"storefront/internal/models"
)

// MemoryStore is an in-process stand-in for the Mongo stores, used for local
// runs without a database and in tests. It follows the same merge semantics.
type MemoryStore struct {
	mu      sync.RWMutex
	orders  map[string]models.Order
	intents map[string]models.PaymentIntentRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:  make(map[string]models.Order),
		intents: make(map[string]models.PaymentIntentRecord),
	}
}

func (s *MemoryStore) InsertOrder(_ context.Context, order models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, order.ID)
	}
	s.orders[order.ID] = order
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (s *MemoryStore) UpdateOrderStatus(_ context.Context, order models.Order, expected models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[order.ID]
	if !ok {
		return ErrOrderNotFound
	}
	if current.Status != expected {
		return ErrStatusConflict
	}
	current.Status = order.Status
	current.StatusHistory = order.StatusHistory
	current.UpdatedAt = order.UpdatedAt
	s.orders[order.ID] = current
	return nil
}

func (s *MemoryStore) AttachPaymentIntent(_ context.Context, orderID, intentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	order.PaymentIntentID = intentID
	order.UpdatedAt = time.Now()
	s.orders[orderID] = order
	return nil
}

func (s *MemoryStore) FindByPaymentIntent(_ context.Context, intentID string) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, order := range s.orders {
		if order.PaymentIntentID == intentID {
			return order, nil
		}
	}
	return models.Order{}, ErrOrderNotFound
}

func (s *MemoryStore) AccountStats(_ context.Context, userID string) (models.AccountStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count, spent int64
	var last *time.Time
	for _, order := range s.orders {
		if order.UserID != userID || order.Status == models.StatusCancelled || order.Status == models.StatusRefunded {
			continue
		}
		count++
		spent += order.Pricing.Total
		if last == nil || order.CreatedAt.After(*last) {
			at := order.CreatedAt
			last = &at
		}
	}
	return newAccountStats(count, spent, last), nil
}

func (s *MemoryStore) UpsertPaymentIntent(_ context.Context, record models.PaymentIntentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.intents[record.PaymentIntentID]
	if !ok {
		if record.CreatedAt.IsZero() {
			record.CreatedAt = time.Now()
		}
		if record.UpdatedAt.IsZero() {
			record.UpdatedAt = record.CreatedAt
		}
		s.intents[record.PaymentIntentID] = cloneIntent(record)
		return nil
	}

	existing.Status = record.Status
	existing.Amount = record.Amount
	existing.Currency = record.Currency
	if len(record.Metadata) > 0 {
		existing.Metadata = maps.Clone(record.Metadata)
	}
	if record.OrderReference != "" {
		existing.OrderReference = record.OrderReference
	}
	if record.CustomerEmail != "" {
		existing.CustomerEmail = record.CustomerEmail
	}
	if len(record.OrderSnapshot) > 0 {
		existing.OrderSnapshot = maps.Clone(record.OrderSnapshot)
	}
	existing.UpdatedAt = record.UpdatedAt
	if existing.UpdatedAt.IsZero() {
		existing.UpdatedAt = time.Now()
	}
	s.intents[record.PaymentIntentID] = existing
	return nil
}

func (s *MemoryStore) UpdatePaymentIntentStatus(_ context.Context, intentID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	record, ok := s.intents[intentID]
	if !ok {
		record = models.PaymentIntentRecord{PaymentIntentID: intentID, CreatedAt: now}
	}
	record.Status = status
	record.UpdatedAt = now
	s.intents[intentID] = record
	return nil
}

// PaymentIntents returns a copy of every stored snapshot.
func (s *MemoryStore) PaymentIntents() []models.PaymentIntentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.PaymentIntentRecord, 0, len(s.intents))
	for _, record := range s.intents {
		out = append(out, cloneIntent(record))
	}
	return out
}

// cloneIntent copies the record's maps so callers never share them with the store.
func cloneIntent(record models.PaymentIntentRecord) models.PaymentIntentRecord {
	record.Metadata = maps.Clone(record.Metadata)
	record.OrderSnapshot = maps.Clone(record.OrderSnapshot)
	return record
}
