package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/middleware"
)

type RouterDeps struct {
	Orders   OrderPlacer
	Payments IntentCreator
	Stats    StatsReader
	// Invalidator may be nil when account stats are not cached.
	Invalidator StatsInvalidator
	Flow        Transitioner
	Verifier    middleware.TokenVerifier
	Ping        func(ctx context.Context) error
	Logger      *zap.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.LoggerMiddleware(d.Logger.Named("http")))
	r.Use(middleware.MetricsMiddleware())

	r.GET("/health", HealthCheck(d.Ping))
	r.GET("/metrics", middleware.PrometheusHandler())

	r.POST("/orders", middleware.OptionalUser(d.Verifier, d.Logger), CreateOrder(d.Orders, d.Invalidator, d.Logger))
	r.GET("/orders", GetOrders())
	r.POST("/payments/create-intent", CreatePaymentIntent(d.Payments, d.Logger))

	account := r.Group("/account")
	account.Use(middleware.UserAuth(d.Verifier, d.Logger))
	{
		account.GET("/stats", GetAccountStats(d.Stats, d.Logger))
	}

	admin := r.Group("/admin/api")
	admin.Use(middleware.AdminAuth(d.Verifier, d.Logger))
	{
		admin.GET("/me", CurrentAdmin())
		admin.POST("/orders/:id/status", UpdateOrderStatus(d.Flow, d.Logger))
	}

	return r
}
