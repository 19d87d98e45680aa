package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/checkout"
	"storefront/internal/middleware"
	"storefront/internal/models"
)

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, userID string, draft checkout.Draft) (models.Order, error)
}

type StatsInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

/* =========================
   REQUEST DTOs
========================= */

type createOrderItemRequest struct {
	ProductID string   `json:"productId" binding:"max=64"`
	Name      string   `json:"name" binding:"max=200"`
	UnitPrice int64    `json:"unitPrice"`
	Quantity  int      `json:"quantity"`
	Size      string   `json:"size" binding:"max=50"`
	Crust     string   `json:"crust" binding:"max=50"`
	Extras    []string `json:"extras" binding:"max=20,dive,max=100"`
}

type createOrderAddressRequest struct {
	Neighborhood string `json:"neighborhood" binding:"max=200"`
	Street       string `json:"street" binding:"max=200"`
	Details      string `json:"details" binding:"max=500"`
}

type createOrderContactRequest struct {
	FullName string `json:"fullName" binding:"max=200"`
	Phone    string `json:"phone" binding:"max=32"`
	Email    string `json:"email" binding:"omitempty,email"`
}

type createOrderRequest struct {
	Items         []createOrderItemRequest   `json:"items" binding:"max=100,dive"`
	DeliveryType  string                     `json:"deliveryType"`
	Address       *createOrderAddressRequest `json:"address"`
	Contact       createOrderContactRequest  `json:"contact"`
	PaymentMethod string                     `json:"paymentMethod"`
	LoyaltyPoints int64                      `json:"loyaltyPoints" binding:"min=0"`
}

func (r createOrderRequest) draft() checkout.Draft {
	items := make([]models.OrderItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Crust:     item.Crust,
			Extras:    item.Extras,
		})
	}

	d := checkout.Draft{
		Items:        items,
		DeliveryType: models.DeliveryType(r.DeliveryType),
		Contact: models.Contact{
			FullName: r.Contact.FullName,
			Phone:    r.Contact.Phone,
			Email:    r.Contact.Email,
		},
		PaymentMethod: models.PaymentMethod(r.PaymentMethod),
		LoyaltyPoints: r.LoyaltyPoints,
	}
	if r.Address != nil {
		d.Address = &models.Address{
			Neighborhood: r.Address.Neighborhood,
			Street:       r.Address.Street,
			Details:      r.Address.Details,
		}
	}
	return d
}

/* =========================
   CREATE ORDER
========================= */

func CreateOrder(orders OrderPlacer, stats StatsInvalidator, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("order")
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, logger, route)

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithBindError(c, logger, route, err)
			return
		}

		userID := middleware.UserID(c)
		order, err := orders.PlaceOrder(c.Request.Context(), userID, req.draft())
		if err != nil {
			var vErr *checkout.ValidationError
			if errors.As(err, &vErr) {
				logger.Info("order draft rejected", zap.String("field", vErr.Field), zap.String("message", vErr.Message))
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Message, "field": vErr.Field})
				return
			}
			logger.Error("order not created", zap.String("user_id", userID), zap.Error(err))
			respondWithError(c, logger, http.StatusInternalServerError, route, "failed to create order")
			return
		}

		if stats != nil && userID != "" {
			stats.Invalidate(c.Request.Context(), userID)
		}

		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"order": gin.H{
				"id":          order.ID,
				"orderNumber": order.OrderNumber,
				"total":       order.Pricing.Total,
			},
		})
	}
}

// GetOrders answers 501 until order history is served here.
func GetOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "not implemented"})
	}
}
