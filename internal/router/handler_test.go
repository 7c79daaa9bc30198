package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/shopbridge/cart-service/pkg/cart"
)

func newTestRouter(t *testing.T) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := cart.NewStore(client, cart.Config{})
	sweeper := cart.NewSweeper(client, cart.SweeperConfig{})

	engine := gin.New()
	RegisterRoutes(engine, NewHandler(store, sweeper, nil, 7))
	return engine, mr
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func addBody(userID, productID int64, quantity int) map[string]any {
	return map[string]any{
		"userId":    userID,
		"productId": productID,
		"quantity":  quantity,
		"price":     19.99,
		"name":      "Mechanical Keyboard",
	}
}

func TestAddToCartAndList(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/cart/add", addBody(7, 101, 2))
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)

	var item struct {
		ItemKey  string `json:"cartItemId"`
		Quantity int    `json:"quantity"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &item))
	require.Equal(t, "7:101", item.ItemKey)
	require.Equal(t, 2, item.Quantity)

	rec = doJSON(t, engine, http.MethodGet, "/api/cart/7", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var items []json.RawMessage
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &items))
	require.Len(t, items, 1)
}

func TestAddToCartRejectsBadBody(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/cart/add", map[string]any{"userId": 7})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, engine, http.MethodPost, "/api/cart/add", addBody(7, 101, -2))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidUserIDParam(t *testing.T) {
	engine, _ := newTestRouter(t)

	for _, path := range []string{"/api/cart/abc", "/api/cart/-4", "/api/cart/0"} {
		rec := doJSON(t, engine, http.MethodGet, path, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestUpdateQuantityEndpoints(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/cart/add", addBody(7, 101, 2))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodPut, "/api/cart/7/items/7:101/quantity", map[string]any{"quantity": 5})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodPut, "/api/cart/7/items/7:999/quantity", map[string]any{"quantity": 5})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, engine, http.MethodPut, "/api/cart/7/items/7:101/quantity", map[string]any{"quantity": -1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveAndClear(t *testing.T) {
	engine, _ := newTestRouter(t)

	doJSON(t, engine, http.MethodPost, "/api/cart/add", addBody(7, 101, 1))

	rec := doJSON(t, engine, http.MethodDelete, "/api/cart/7/items/7:101", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodDelete, "/api/cart/7/items/7:101", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	doJSON(t, engine, http.MethodPost, "/api/cart/add", addBody(7, 102, 1))

	rec = doJSON(t, engine, http.MethodDelete, "/api/cart/7", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodDelete, "/api/cart/7", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtendExpiryEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t)

	// Empty cart is a caller-visible negative outcome, not a server fault.
	rec := doJSON(t, engine, http.MethodPost, "/api/cart/7/extend-expiry", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	doJSON(t, engine, http.MethodPost, "/api/cart/add", addBody(7, 101, 1))

	rec = doJSON(t, engine, http.MethodPost, "/api/cart/7/extend-expiry", map[string]any{"days": 3})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMakePermanentEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/cart/7/make-permanent", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	doJSON(t, engine, http.MethodPost, "/api/cart/add", addBody(7, 101, 1))

	rec = doJSON(t, engine, http.MethodPost, "/api/cart/7/make-permanent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCleanupEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t)

	doJSON(t, engine, http.MethodPost, "/api/cart/add", addBody(7, 101, 1))

	rec := doJSON(t, engine, http.MethodPost, "/api/cart/cleanup", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]int
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &result))
	require.Zero(t, result["removed"], "nothing has lapsed yet")
}

func TestListDegradesGracefullyOnBackendFault(t *testing.T) {
	engine, mr := newTestRouter(t)

	mr.SetError("simulated backend outage")

	rec := doJSON(t, engine, http.MethodGet, "/api/cart/7", nil)
	require.Equal(t, http.StatusOK, rec.Code, "browse flows keep working on a dead backend")

	var items []json.RawMessage
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &items))
	require.Empty(t, items)
}
