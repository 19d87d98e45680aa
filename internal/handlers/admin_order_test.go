package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

func placeOrder(t *testing.T, app *testApp, deliveryType string) string {
	t.Helper()
	body := orderBody()
	body["deliveryType"] = deliveryType
	w := app.do(http.MethodPost, "/orders", body, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["order"].(map[string]any)["id"].(string)
}

func TestUpdateOrderStatusFlow(t *testing.T) {
	app := newTestApp(t, nil)
	admin := map[string]string{"Authorization": bearer(t, "admin-1", "admin")}
	id := placeOrder(t, app, "pickup")
	path := "/admin/api/orders/" + id + "/status"

	w := app.do(http.MethodPost, path, map[string]any{"event": "confirmPayment"}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, next := range []string{"preparing", "ready"} {
		w = app.do(http.MethodPost, path, map[string]any{"event": "advanceFulfillment", "status": next}, admin)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	// pickup orders never go out for delivery
	w = app.do(http.MethodPost, path, map[string]any{"event": "advanceFulfillment", "status": "out_for_delivery"}, admin)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ready", decode(t, w)["from"])

	w = app.do(http.MethodPost, path, map[string]any{"event": "advanceFulfillment", "status": "completed"}, admin)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodPost, path, map[string]any{"event": "cancel", "reason": "too late"}, admin)
	require.Equal(t, http.StatusConflict, w.Code)

	stored, err := app.store.GetOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Len(t, stored.StatusHistory, 4)
}

func TestUpdateOrderStatusErrors(t *testing.T) {
	app := newTestApp(t, nil)
	admin := map[string]string{"Authorization": bearer(t, "admin-1", "admin")}
	id := placeOrder(t, app, "delivery")

	w := app.do(http.MethodPost, "/admin/api/orders/"+id+"/status", map[string]any{"event": "teleport"}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(http.MethodPost, "/admin/api/orders/"+id+"/status", map[string]any{}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(http.MethodPost, "/admin/api/orders/order_0/status", map[string]any{"event": "cancel"}, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	customer := map[string]string{"Authorization": bearer(t, "user-1", "customer")}
	w = app.do(http.MethodPost, "/admin/api/orders/"+id+"/status", map[string]any{"event": "cancel"}, customer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodPost, "/admin/api/orders/"+id+"/status", map[string]any{"event": "cancel"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCurrentAdminReturnsIdentity(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.do(http.MethodGet, "/admin/api/me", nil, map[string]string{"Authorization": bearer(t, "admin-3", "admin")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "admin-3", body["userId"])
	assert.Equal(t, "admin", body["role"])

	w = app.do(http.MethodGet, "/admin/api/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
