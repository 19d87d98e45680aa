package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"storefront/internal/cache"
	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/handlers"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/orderflow"
	"storefront/internal/payments"
	"storefront/internal/pricing"
	"storefront/internal/retry"
)

type orderStore interface {
	checkout.OrderWriter
	orderflow.OrderStore
	cache.StatsLoader
}

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		orders  orderStore
		intents payments.IntentStore
		ping    func(ctx context.Context) error
	)
	if cfg.MongoURI == "" {
		if !cfg.IsDevelopment() {
			logger.Fatal("MONGO_URI is required outside development")
		}
		logger.Warn("MONGO_URI not set, using in-memory store")
		mem := database.NewMemoryStore()
		orders, intents = mem, mem
	} else {
		client, err := database.Connect(cfg.MongoURI)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}()

		db := client.Database(cfg.DBName)
		logger.Info("MongoDB connected", zap.String("database", db.Name()))

		if err := database.EnsureOrderIndexes(db, logger); err != nil {
			logger.Warn("order index warning", zap.Error(err))
		}
		if err := database.EnsurePaymentIntentIndexes(db, logger); err != nil {
			logger.Warn("payment intent index warning", zap.Error(err))
		}

		orders = database.NewOrderStore(db)
		intents = database.NewPaymentIntentStore(db)
		ping = func(ctx context.Context) error { return database.Ping(ctx, db) }
	}

	retrier := retry.New(
		retry.WithBase(cfg.PersistRetryBase),
		retry.WithMaxRetries(cfg.PersistRetryMaxAttempts),
		retry.WithClassifier(database.ClassifyMongoError),
		retry.OnRetry(func(attempt int, code codes.Code, delay time.Duration, err error) {
			metrics.RecordPersistenceRetry(code.String())
			logger.Warn("retrying store write",
				zap.Int("attempt", attempt),
				zap.String("code", code.String()),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		}),
	)

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := events.NewSyncProducer(cfg.KafkaBrokers, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
		}
		defer producer.Close()
		publisher = events.NewKafkaPublisher(producer, cfg.KafkaOrderTopic, logger)
	}

	var statsStore cache.Store
	if cfg.RedisAddr != "" {
		rdb, err := cache.InitRedis(cfg.RedisAddr, cfg.RedisPassword, logger)
		if err != nil {
			logger.Warn("account stats cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			statsStore = cache.NewRedisStore(rdb, "storefront")
		}
	}
	stats := cache.NewStatsCache(statsStore, orders, cfg.StatsCacheTTL, logger)

	normalizer := payments.NewAmountNormalizer(cfg.ZeroDecimalCurrencies)
	coordinator := payments.NewCoordinator(
		payments.NewStripeGateway(cfg.StripeSecretKey, logger),
		intents,
		retrier,
		normalizer,
		payments.CoordinatorConfig{
			DefaultCurrency:        cfg.DefaultCurrency,
			MinAmount:              cfg.PaymentMinAmount,
			MaxAmount:              cfg.PaymentMaxAmount,
			MetadataMaxKeys:        cfg.MetadataMaxKeys,
			MetadataMaxValueLength: cfg.MetadataMaxValueLength,
		},
		logger,
		nil,
	)

	checkoutService := checkout.NewService(orders, retrier, publisher, pricing.Rates{
		FreeDeliveryThreshold: cfg.FreeDeliveryThreshold,
		DeliveryFee:           cfg.DeliveryFee,
		TaxRate:               cfg.TaxRate,
		LoyaltyPointValue:     cfg.LoyaltyPointValue,
	}, cfg.MaxItemQuantity, logger)

	flow := orderflow.NewService(orders, retrier, publisher, coordinator, logger,
		orderflow.WithStatsInvalidator(stats),
		orderflow.WithAmountCheck(normalizer, cfg.DefaultCurrency),
	)

	if len(cfg.KafkaBrokers) > 0 {
		group, err := events.NewConsumerGroup(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Kafka consumer group", zap.Error(err))
		}
		defer group.Close()

		paymentConsumer := events.NewPaymentConsumer(group, cfg.KafkaPaymentTopic, flow, logger)
		go func() {
			if err := paymentConsumer.Run(ctx); err != nil {
				logger.Error("Kafka consumer error", zap.Error(err))
			}
		}()
	}

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, authenticated routes will reject every token")
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Orders:      checkoutService,
		Payments:    coordinator,
		Stats:       stats,
		Invalidator: stats,
		Flow:        flow,
		Verifier:    middleware.NewJWTVerifier(cfg.JWTSecret),
		Ping:        ping,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	logger.Info("Storefront API started", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}
