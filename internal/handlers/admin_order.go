package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/database"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/orderflow"
)

type Transitioner interface {
	Transition(ctx context.Context, orderID string, event orderflow.Event) (models.Order, error)
}

type updateOrderStatusRequest struct {
	Event  string `json:"event" binding:"required"`
	Status string `json:"status"`
	Reason string `json:"reason" binding:"max=500"`
}

func UpdateOrderStatus(flow Transitioner, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("admin")
	return func(c *gin.Context) {
		const route = "POST /admin/api/orders/:id/status"
		defer handlePanic(c, logger, route)

		orderID := strings.TrimSpace(c.Param("id"))
		if orderID == "" {
			respondWithError(c, logger, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req updateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithBindError(c, logger, route, err)
			return
		}

		event, err := orderflow.ParseEvent(req.Event, req.Status, strings.TrimSpace(req.Reason))
		if err != nil {
			respondWithError(c, logger, http.StatusBadRequest, route, err.Error())
			return
		}

		order, err := flow.Transition(c.Request.Context(), orderID, event)
		if err != nil {
			var tErr *orderflow.TransitionError
			switch {
			case errors.Is(err, database.ErrOrderNotFound):
				respondWithError(c, logger, http.StatusNotFound, route, "order not found")
			case errors.As(err, &tErr):
				logger.Info("transition rejected", zap.String("order_id", orderID), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{
					"error": tErr.Error(),
					"from":  tErr.From,
					"to":    tErr.To,
				})
			case errors.Is(err, database.ErrStatusConflict):
				respondWithError(c, logger, http.StatusConflict, route, "order was modified concurrently, retry")
			default:
				logger.Error("transition failed", zap.String("order_id", orderID), zap.Error(err))
				respondWithError(c, logger, http.StatusInternalServerError, route, "db error")
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
	}
}

// CurrentAdmin echoes the identity the admin token was verified as.
func CurrentAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"userId": middleware.UserID(c),
			"role":   c.GetString(middleware.ContextRole),
		})
	}
}
