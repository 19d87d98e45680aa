package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var ErrGatewayUnavailable = errors.New("payment gateway is not configured")

// AuthorizationRequest is what the coordinator asks the gateway to authorize.
type AuthorizationRequest struct {
	Amount       int64
	Currency     string
	Metadata     map[string]string
	ReceiptEmail string
	// IdempotencyKey lets a retried client call reuse the same authorization.
	IdempotencyKey string
}

type Authorization struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       string
}

// Gateway is the boundary to the external card processor.
type Gateway interface {
	CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*Authorization, error)
}

// Gateway error kinds, following the processor's own taxonomy.
const (
	GatewayErrorCard           = "card_error"
	GatewayErrorInvalidRequest = "invalid_request_error"
	GatewayErrorIdempotency    = "idempotency_error"
	GatewayErrorAPI            = "api_error"
	GatewayErrorRateLimit      = "rate_limit_error"
	GatewayErrorConnection     = "api_connection_error"
	GatewayErrorAuthentication = "authentication_error"
)

// GatewayError is a declined or failed gateway call. Message is passed through
// to the client untouched.
type GatewayError struct {
	Type       string
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway %s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway %s: %s", e.Type, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// HTTPStatus maps the gateway taxonomy onto the closest client-facing status:
// problems with the card or the request are the caller's, everything else is
// a processor-side outage.
func (e *GatewayError) HTTPStatus() int {
	switch e.Type {
	case GatewayErrorCard, GatewayErrorInvalidRequest, GatewayErrorIdempotency:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}
