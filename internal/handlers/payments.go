package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/metrics"
	"storefront/internal/payments"
)

const idempotencyHeader = "Idempotency-Key"

type IntentCreator interface {
	CreateIntent(ctx context.Context, req payments.CreateIntentRequest) (*payments.CreateIntentResult, error)
}

type createIntentRequest struct {
	Amount        *float64       `json:"amount" binding:"required"`
	Currency      string         `json:"currency" binding:"max=3"`
	Metadata      map[string]any `json:"metadata"`
	CustomerEmail string         `json:"customerEmail" binding:"max=254"`
	Order         map[string]any `json:"order"`
}

func CreatePaymentIntent(intents IntentCreator, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("payment")
	return func(c *gin.Context) {
		const route = "POST /payments/create-intent"
		defer handlePanic(c, logger, route)

		var req createIntentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			metrics.RecordPaymentIntent("validation_error")
			respondWithBindError(c, logger, route, err)
			return
		}

		result, err := intents.CreateIntent(c.Request.Context(), payments.CreateIntentRequest{
			Amount:         *req.Amount,
			Currency:       req.Currency,
			Metadata:       req.Metadata,
			CustomerEmail:  req.CustomerEmail,
			Order:          req.Order,
			IdempotencyKey: strings.TrimSpace(c.GetHeader(idempotencyHeader)),
		})
		if err != nil {
			respondWithPaymentError(c, logger, route, err)
			return
		}

		metrics.RecordPaymentIntent("created")
		c.JSON(http.StatusCreated, result)
	}
}

func respondWithPaymentError(c *gin.Context, logger *zap.Logger, route string, err error) {
	var vErr *payments.ValidationError
	var gErr *payments.GatewayError

	switch {
	case errors.As(err, &vErr):
		metrics.RecordPaymentIntent("validation_error")
		message := "invalid request"
		if len(vErr.Violations) > 0 {
			message = vErr.Violations[0].Message
		}
		logger.Info("payment intent rejected", zap.String("route", route), zap.Any("violations", vErr.Violations))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message, "details": vErr.Violations})
	case errors.Is(err, payments.ErrInvalidAmount):
		metrics.RecordPaymentIntent("invalid_amount")
		respondWithError(c, logger, http.StatusBadRequest, route, err.Error())
	case errors.Is(err, payments.ErrGatewayUnavailable):
		metrics.RecordPaymentIntent("gateway_unavailable")
		respondWithError(c, logger, http.StatusInternalServerError, route, "payment gateway is not configured")
	case errors.As(err, &gErr):
		metrics.RecordPaymentIntent("gateway_rejected")
		body := gin.H{"error": gErr.Message, "type": gErr.Type}
		if gErr.Code != "" {
			body["code"] = gErr.Code
		}
		logger.Warn("gateway rejected payment intent", zap.String("route", route), zap.Int("status", gErr.HTTPStatus()), zap.Error(gErr))
		c.AbortWithStatusJSON(gErr.HTTPStatus(), body)
	default:
		metrics.RecordPaymentIntent("error")
		logger.Error("payment intent failed", zap.String("route", route), zap.Error(err))
		respondWithError(c, logger, http.StatusInternalServerError, route, "failed to create payment intent")
	}
}
