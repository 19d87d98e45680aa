package payments

import (
	"context"
	"errors"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

// StripeGateway authorizes charges through Stripe payment intents.
type StripeGateway struct {
	api    *client.API
	logger *zap.Logger
}

// NewStripeGateway returns nil when no secret key is configured, which the
// coordinator reports as ErrGatewayUnavailable.
func NewStripeGateway(secretKey string, logger *zap.Logger) Gateway {
	if secretKey == "" {
		logger.Warn("stripe secret key missing, payments disabled")
		return nil
	}
	return &StripeGateway{
		api:    client.New(secretKey, nil),
		logger: logger.Named("stripe"),
	}
}

func (g *StripeGateway) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*Authorization, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, translateStripeError(err)
	}

	g.logger.Debug("payment intent created",
		zap.String("payment_intent_id", intent.ID),
		zap.String("status", string(intent.Status)),
	)

	return &Authorization{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     string(intent.Currency),
		Status:       string(intent.Status),
	}, nil
}

func translateStripeError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return &GatewayError{
			Type:       GatewayErrorConnection,
			Message:    err.Error(),
			StatusCode: http.StatusServiceUnavailable,
			Err:        err,
		}
	}

	kind := string(stripeErr.Type)
	if stripeErr.HTTPStatusCode == http.StatusTooManyRequests {
		kind = GatewayErrorRateLimit
	}
	return &GatewayError{
		Type:       kind,
		Code:       string(stripeErr.Code),
		Message:    stripeErr.Msg,
		StatusCode: stripeErr.HTTPStatusCode,
		Err:        err,
	}
}
