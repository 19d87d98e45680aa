package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Stripe's zero-decimal currencies. Amounts in these are sent without scaling.
var defaultZeroDecimalCurrencies = []string{
	"bif", "clp", "djf", "gnf", "jpy", "kmf", "krw", "mga",
	"pyg", "rwf", "ugx", "vnd", "vuv", "xaf", "xof", "xpf",
}

type Config struct {
	Port     string
	AppEnv   string
	MongoURI string
	DBName   string

	JWTSecret string

	StripeSecretKey       string
	DefaultCurrency       string
	ZeroDecimalCurrencies []string

	FreeDeliveryThreshold int64
	DeliveryFee           int64
	TaxRate               float64
	LoyaltyPointValue     int64
	MaxItemQuantity       int

	PaymentMinAmount       float64
	PaymentMaxAmount       float64
	MetadataMaxKeys        int
	MetadataMaxValueLength int

	PersistRetryBase        time.Duration
	PersistRetryMaxAttempts int

	RedisAddr     string
	RedisPassword string
	StatsCacheTTL time.Duration

	KafkaBrokers       []string
	KafkaOrderTopic    string
	KafkaPaymentTopic  string
	KafkaConsumerGroup string
}

// Load reads the process environment (and .env when present). The result is
// read-only for the lifetime of the process.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		Port:     getEnvOrDefault("PORT", "8080"),
		AppEnv:   getEnvOrDefault("APP_ENV", "production"),
		MongoURI: getEnvOrDefault("MONGO_URI", ""),
		DBName:   getEnvOrDefault("DB_NAME", "storefront"),

		JWTSecret: getEnvOrDefault("JWT_SECRET", ""),

		StripeSecretKey:       getEnvOrDefault("STRIPE_SECRET_KEY", ""),
		DefaultCurrency:       strings.ToLower(getEnvOrDefault("DEFAULT_CURRENCY", "xaf")),
		ZeroDecimalCurrencies: getListEnv("ZERO_DECIMAL_CURRENCIES", defaultZeroDecimalCurrencies),

		FreeDeliveryThreshold: getInt64Env("FREE_DELIVERY_THRESHOLD", 15000),
		DeliveryFee:           getInt64Env("DELIVERY_FEE", 1000),
		TaxRate:               getFloatEnv("TAX_RATE", 0),
		LoyaltyPointValue:     getInt64Env("LOYALTY_POINT_VALUE", 0),
		MaxItemQuantity:       int(getInt64Env("MAX_ITEM_QUANTITY", 20)),

		PaymentMinAmount:       getFloatEnv("PAYMENT_MIN_AMOUNT", 0.5),
		PaymentMaxAmount:       getFloatEnv("PAYMENT_MAX_AMOUNT", 1000000),
		MetadataMaxKeys:        int(getInt64Env("METADATA_MAX_KEYS", 50)),
		MetadataMaxValueLength: int(getInt64Env("METADATA_MAX_VALUE_LENGTH", 500)),

		PersistRetryBase:        getDurationEnv("PERSIST_RETRY_BASE", 1000, time.Millisecond),
		PersistRetryMaxAttempts: int(getInt64Env("PERSIST_RETRY_MAX_ATTEMPTS", 3)),

		RedisAddr:     getEnvOrDefault("REDIS_ADDR", ""),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		StatsCacheTTL: getDurationEnv("STATS_CACHE_TTL", 60, time.Second),

		KafkaBrokers:       getListEnv("KAFKA_BROKERS", nil),
		KafkaOrderTopic:    getEnvOrDefault("KAFKA_ORDER_TOPIC", "order_events"),
		KafkaPaymentTopic:  getEnvOrDefault("KAFKA_PAYMENT_TOPIC", "payment_events"),
		KafkaConsumerGroup: getEnvOrDefault("KAFKA_CONSUMER_GROUP", "storefront-payments"),
	}
}

func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	out := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.ToLower(strings.TrimSpace(part)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
