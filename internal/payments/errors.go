package payments

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/models"
)

type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field-level problem with a create-intent request.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// LogSink is the default reconciliation sink. It leaves a structured record
// that an operator or a log-driven job can replay.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) PersistenceFailed(_ context.Context, record models.PaymentIntentRecord, err error) {
	s.Logger.Error("payment intent requires reconciliation",
		zap.String("payment_intent_id", record.PaymentIntentID),
		zap.String("status", record.Status),
		zap.Int64("amount", record.Amount),
		zap.String("currency", record.Currency),
		zap.String("order_reference", record.OrderReference),
		zap.Any("metadata", record.Metadata),
		zap.Error(err),
	)
}
