package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storefront/internal/cache"
	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/middleware"
	"storefront/internal/orderflow"
	"storefront/internal/payments"
	"storefront/internal/pricing"
	"storefront/internal/retry"
)

const testSecret = "handler-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGateway struct {
	err   error
	calls []payments.AuthorizationRequest
}

func (g *fakeGateway) CreateAuthorization(_ context.Context, req payments.AuthorizationRequest) (*payments.Authorization, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	return &payments.Authorization{
		ID:           "pi_test_1",
		ClientSecret: "pi_test_1_secret",
		Amount:       req.Amount,
		Currency:     req.Currency,
		Status:       "requires_payment_method",
	}, nil
}

type testApp struct {
	router  *gin.Engine
	store   *database.MemoryStore
	gateway *fakeGateway
}

func newTestApp(t *testing.T, gateway payments.Gateway) *testApp {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := config.FromEnv()
	store := database.NewMemoryStore()
	retrier := retry.New(retry.WithBase(time.Millisecond), retry.WithClassifier(database.ClassifyMongoError))

	coordinator := payments.NewCoordinator(
		gateway,
		store,
		retrier,
		payments.NewAmountNormalizer(cfg.ZeroDecimalCurrencies),
		payments.CoordinatorConfig{
			DefaultCurrency:        "xaf",
			MinAmount:              0.5,
			MaxAmount:              1000000,
			MetadataMaxKeys:        50,
			MetadataMaxValueLength: 500,
		},
		logger,
		nil,
	)
	stats := cache.NewStatsCache(nil, store, time.Minute, logger)

	app := &testApp{store: store}
	if fg, ok := gateway.(*fakeGateway); ok {
		app.gateway = fg
	}
	app.router = NewRouter(RouterDeps{
		Orders:      checkout.NewService(store, retrier, nil, pricing.Rates{FreeDeliveryThreshold: 15000, DeliveryFee: 1000, LoyaltyPointValue: 10}, 20, logger),
		Payments:    coordinator,
		Stats:       stats,
		Invalidator: stats,
		Flow:        orderflow.NewService(store, retrier, nil, coordinator, logger, orderflow.WithStatsInvalidator(stats)),
		Verifier:    middleware.NewJWTVerifier(testSecret),
		Logger:      logger,
	})
	return app
}

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": userID,
		"role":   role,
		"exp":    time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func (a *testApp) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.do(http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
}
