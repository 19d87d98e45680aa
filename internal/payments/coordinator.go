package payments

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/models"
)

// IntentStore persists payment intent snapshots with merge-on-write
// semantics keyed by the gateway intent id.
type IntentStore interface {
	UpsertPaymentIntent(ctx context.Context, record models.PaymentIntentRecord) error
	UpdatePaymentIntentStatus(ctx context.Context, intentID, status string) error
}

// Retrier wraps store writes in a bounded retry policy.
type Retrier interface {
	Do(ctx context.Context, op func(ctx context.Context) error) error
}

// ReconciliationSink receives authorizations whose snapshot could not be
// stored so an external process can repair them.
type ReconciliationSink interface {
	PersistenceFailed(ctx context.Context, record models.PaymentIntentRecord, err error)
}

type CoordinatorConfig struct {
	DefaultCurrency        string
	MinAmount              float64
	MaxAmount              float64
	MetadataMaxKeys        int
	MetadataMaxKeyLength   int
	MetadataMaxValueLength int
}

// CreateIntentRequest mirrors the client payload. Amount is in major units.
type CreateIntentRequest struct {
	Amount         float64
	Currency       string
	Metadata       map[string]any
	CustomerEmail  string
	Order          map[string]any
	IdempotencyKey string
}

type CreateIntentResult struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
}

type Coordinator struct {
	gateway    Gateway
	store      IntentStore
	retrier    Retrier
	normalizer *AmountNormalizer
	cfg        CoordinatorConfig
	logger     *zap.Logger
	sink       ReconciliationSink
	now        func() time.Time
}

func NewCoordinator(
	gateway Gateway,
	store IntentStore,
	retrier Retrier,
	normalizer *AmountNormalizer,
	cfg CoordinatorConfig,
	logger *zap.Logger,
	sink ReconciliationSink,
) *Coordinator {
	if cfg.MetadataMaxKeyLength == 0 {
		cfg.MetadataMaxKeyLength = 40
	}
	logger = logger.Named("payment")
	if sink == nil {
		sink = LogSink{Logger: logger}
	}
	return &Coordinator{
		gateway:    gateway,
		store:      store,
		retrier:    retrier,
		normalizer: normalizer,
		cfg:        cfg,
		logger:     logger,
		sink:       sink,
		now:        time.Now,
	}
}

// CreateIntent authorizes a charge and records a best-effort snapshot of it.
// A snapshot that cannot be stored never fails the call: the authorization
// already exists at the gateway and the client can still pay.
func (c *Coordinator) CreateIntent(ctx context.Context, req CreateIntentRequest) (*CreateIntentResult, error) {
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = c.cfg.DefaultCurrency
	}
	email := strings.TrimSpace(req.CustomerEmail)

	if violations := c.validate(req.Amount, currency, req.Metadata, email); len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	amount, err := c.normalizer.Normalize(req.Amount, currency)
	if err != nil {
		return nil, err
	}

	metadata := SanitizeMetadata(req.Metadata)
	orderRef := orderReference(req.Order)
	if orderRef != "" {
		if _, exists := metadata["order_reference"]; !exists {
			metadata["order_reference"] = orderRef
		}
	}

	if c.gateway == nil {
		return nil, ErrGatewayUnavailable
	}

	auth, err := c.gateway.CreateAuthorization(ctx, AuthorizationRequest{
		Amount:         amount,
		Currency:       currency,
		Metadata:       metadata,
		ReceiptEmail:   email,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		c.logger.Warn("gateway authorization failed", zap.String("currency", currency), zap.Int64("amount", amount), zap.Error(err))
		return nil, err
	}

	now := c.now()
	record := models.PaymentIntentRecord{
		PaymentIntentID: auth.ID,
		Status:          auth.Status,
		Amount:          auth.Amount,
		Currency:        auth.Currency,
		Metadata:        metadata,
		OrderReference:  orderRef,
		CustomerEmail:   email,
		OrderSnapshot:   req.Order,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	c.persist(ctx, record)

	return &CreateIntentResult{
		ClientSecret:    auth.ClientSecret,
		PaymentIntentID: auth.ID,
		Amount:          auth.Amount,
		Currency:        auth.Currency,
		Status:          auth.Status,
	}, nil
}

// RecordStatus merges a gateway-reported status into the stored snapshot.
// Repeated deliveries of the same status are harmless.
func (c *Coordinator) RecordStatus(ctx context.Context, intentID, status string) error {
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.store.UpdatePaymentIntentStatus(ctx, intentID, status)
	})
	if err != nil {
		return fmt.Errorf("record payment intent status: %w", err)
	}
	return nil
}

func (c *Coordinator) persist(ctx context.Context, record models.PaymentIntentRecord) {
	// The client response must not depend on the request staying open while
	// we retry the snapshot write.
	ctx = context.WithoutCancel(ctx)
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.store.UpsertPaymentIntent(ctx, record)
	})
	if err == nil {
		return
	}
	c.logger.Error("payment intent snapshot not persisted",
		zap.Bool("critical", true),
		zap.String("payment_intent_id", record.PaymentIntentID),
		zap.String("order_reference", record.OrderReference),
		zap.Int64("amount", record.Amount),
		zap.String("currency", record.Currency),
		zap.Error(err),
	)
	c.sink.PersistenceFailed(ctx, record, err)
}

func (c *Coordinator) validate(amount float64, currency string, metadata map[string]any, email string) []FieldViolation {
	var violations []FieldViolation

	switch {
	case math.IsNaN(amount) || math.IsInf(amount, 0):
		violations = append(violations, FieldViolation{Field: "amount", Message: "amount must be a finite number"})
	case amount < c.cfg.MinAmount:
		violations = append(violations, FieldViolation{Field: "amount", Message: fmt.Sprintf("amount must be at least %v", c.cfg.MinAmount)})
	case c.cfg.MaxAmount > 0 && amount > c.cfg.MaxAmount:
		violations = append(violations, FieldViolation{Field: "amount", Message: fmt.Sprintf("amount must not exceed %v", c.cfg.MaxAmount)})
	}

	if !isCurrencyCode(currency) {
		violations = append(violations, FieldViolation{Field: "currency", Message: "currency must be a 3-letter ISO code"})
	}

	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			violations = append(violations, FieldViolation{Field: "customerEmail", Message: "customerEmail is invalid"})
		}
	}

	if c.cfg.MetadataMaxKeys > 0 && len(metadata) > c.cfg.MetadataMaxKeys {
		violations = append(violations, FieldViolation{Field: "metadata", Message: fmt.Sprintf("metadata supports at most %d keys", c.cfg.MetadataMaxKeys)})
	}
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		field := "metadata." + key
		if strings.TrimSpace(key) == "" || len(key) > c.cfg.MetadataMaxKeyLength {
			violations = append(violations, FieldViolation{Field: field, Message: fmt.Sprintf("metadata keys must be 1-%d characters", c.cfg.MetadataMaxKeyLength)})
			continue
		}
		value, ok := metadataString(metadata[key])
		if !ok {
			violations = append(violations, FieldViolation{Field: field, Message: "metadata values must be strings, numbers or booleans"})
			continue
		}
		if c.cfg.MetadataMaxValueLength > 0 && len(value) > c.cfg.MetadataMaxValueLength {
			violations = append(violations, FieldViolation{Field: field, Message: fmt.Sprintf("metadata values must be at most %d characters", c.cfg.MetadataMaxValueLength)})
		}
	}

	return violations
}

// SanitizeMetadata drops null entries and renders the rest as strings.
func SanitizeMetadata(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		if s, ok := metadataString(value); ok {
			out[key] = s
		}
	}
	return out
}

func metadataString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case fmt.Stringer:
		return v.String(), true
	}
	return "", false
}

func orderReference(order map[string]any) string {
	for _, key := range []string{"id", "orderId", "orderNumber"} {
		if s, ok := order[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
