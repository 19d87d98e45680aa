package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/middleware"
	"storefront/internal/models"
)

type StatsReader interface {
	AccountStats(ctx context.Context, userID string) (models.AccountStats, error)
}

func GetAccountStats(stats StatsReader, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("account")
	return func(c *gin.Context) {
		const route = "GET /account/stats"
		defer handlePanic(c, logger, route)

		userID := middleware.UserID(c)
		if userID == "" {
			respondWithError(c, logger, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		result, err := stats.AccountStats(c.Request.Context(), userID)
		if err != nil {
			logger.Error("account stats failed", zap.String("user_id", userID), zap.Error(err))
			respondWithError(c, logger, http.StatusInternalServerError, route, "failed to load account stats")
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
