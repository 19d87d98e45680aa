package payments

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap/zaptest"
)

func TestNewStripeGatewayWithoutKey(t *testing.T) {
	assert.Nil(t, NewStripeGateway("", zaptest.NewLogger(t)))
	assert.NotNil(t, NewStripeGateway("sk_test_123", zaptest.NewLogger(t)))
}

func TestTranslateStripeCardError(t *testing.T) {
	err := translateStripeError(&stripe.Error{
		Type:           stripe.ErrorTypeCard,
		Code:           stripe.ErrorCodeCardDeclined,
		Msg:            "Your card was declined.",
		HTTPStatusCode: http.StatusPaymentRequired,
	})

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, GatewayErrorCard, gwErr.Type)
	assert.Equal(t, "card_declined", gwErr.Code)
	assert.Equal(t, "Your card was declined.", gwErr.Message)
	assert.Equal(t, http.StatusBadRequest, gwErr.HTTPStatus())
}

func TestTranslateStripeOutage(t *testing.T) {
	err := translateStripeError(&stripe.Error{
		Type:           stripe.ErrorTypeAPI,
		Msg:            "An unknown error occurred",
		HTTPStatusCode: http.StatusInternalServerError,
	})

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusServiceUnavailable, gwErr.HTTPStatus())
}

func TestTranslateStripeRateLimit(t *testing.T) {
	err := translateStripeError(&stripe.Error{
		Type:           stripe.ErrorTypeInvalidRequest,
		Msg:            "Too many requests",
		HTTPStatusCode: http.StatusTooManyRequests,
	})

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, GatewayErrorRateLimit, gwErr.Type)
	assert.Equal(t, http.StatusServiceUnavailable, gwErr.HTTPStatus())
}

func TestTranslateNetworkError(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := translateStripeError(cause)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, GatewayErrorConnection, gwErr.Type)
	assert.ErrorIs(t, err, cause)
}
