package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	adminclient "storefront/internal/admin"
	"storefront/internal/domain"
	"storefront/internal/messaging"
	cartrepo "storefront/internal/repository/cart"
	"storefront/internal/repository/idempotency"
	adminsvc "storefront/internal/service/admin"
	cartsvc "storefront/internal/service/cart"
	"storefront/internal/service/checkout"
	productsvc "storefront/internal/service/product"
	"storefront/internal/service/reconcile"
	"storefront/internal/service/session"
)

type stubCatalog struct {
	mu       sync.Mutex
	products map[domain.ProductID]domain.Product
	err      error
	calls    int
}

func (s *stubCatalog) GetProduct(_ context.Context, id domain.ProductID) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *stubCatalog) ListProducts(context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubCatalog) lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubOrders struct {
	mu   sync.Mutex
	reqs []domain.OrderRequest
	err  error
}

func (s *stubOrders) CreateOrder(_ context.Context, req domain.OrderRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.reqs = append(s.reqs, req)
	return "101", nil
}

type stubAdminBackend struct {
	updated map[string]domain.OrderStatus
}

func (s *stubAdminBackend) Stats(context.Context) (*adminclient.Stats, error) {
	return &adminclient.Stats{
		TotalSales:  decimal.RequireFromString("1250.50"),
		TotalOrders: 7,
		LowStockProducts: []domain.Product{
			{ID: "3", Name: "Bucket Hat", StockQuantity: 2},
			{ID: "4", Name: "Track Pants", StockQuantity: 8},
		},
	}, nil
}

func (s *stubAdminBackend) ListOrders(context.Context) ([]domain.Order, error) {
	return []domain.Order{
		{ID: "1", CustomerName: "Ann", Status: domain.OrderStatusPending},
		{ID: "2", CustomerName: "Ben", Status: domain.OrderStatusShipped},
	}, nil
}

func (s *stubAdminBackend) UpdateOrderStatus(_ context.Context, orderID string, status domain.OrderStatus) error {
	if orderID == "404" {
		return domain.ErrNotFound
	}
	s.updated[orderID] = status
	return nil
}

type testEnv struct {
	router  *gin.Engine
	catalog *stubCatalog
	orders  *stubOrders
	repo    *cartrepo.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalog := &stubCatalog{products: map[domain.ProductID]domain.Product{
		"1": {ID: "1", Name: "Logo Tee", Price: decimal.RequireFromString("199.99"), Sizes: "S,M,L", CategoryName: "t-shirts", StockQuantity: 10},
		"2": {ID: "2", Name: "Snapback", Price: decimal.RequireFromString("150"), CategoryName: "caps", StockQuantity: 0},
	}}
	orders := &stubOrders{}
	repo := cartrepo.NewMemory()
	sessions, err := session.New([]byte("test-secret"), time.Hour)
	require.NoError(t, err)

	router, err := buildRouter(zap.NewNop(), Deps{
		Sessions:   sessions,
		Carts:      cartsvc.New(repo, zap.NewNop()),
		Reconciler: reconcile.New(catalog, zap.NewNop()),
		Checkout: checkout.New(orders, messaging.NewWhatsApp(), checkout.Settings{
			ShopName:    "Test Shop",
			Destination: "+27 82 000 0000",
		}, zap.NewNop(), checkout.WithDeduper(idempotency.NewMemory(time.Hour))),
		Products:       productsvc.New(catalog),
		Admin:          adminsvc.New(&stubAdminBackend{updated: map[string]domain.OrderStatus{}}),
		CurrencySymbol: "R",
	})
	require.NoError(t, err)
	return &testEnv{router: router, catalog: catalog, orders: orders, repo: repo}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(sessionHeader, token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) session(t *testing.T) (string, string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/session", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, resp.Token, w.Header().Get(sessionHeader))
	return resp.Token, resp.SessionID
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestCartRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "missing_session", decodeBody[errorResponse](t, w).Code)

	w = env.do(t, http.MethodGet, "/api/cart", "forged.token.sig", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_session", decodeBody[errorResponse](t, w).Code)
}

func TestCartFlow(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.session(t)

	w := env.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{"productId": 1, "size": "M", "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, decodeBody[countResponse](t, w).ItemCount)

	w = env.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{"productId": "1", "size": "M"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decodeBody[countResponse](t, w).ItemCount)

	w = env.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{"productId": 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, decodeBody[countResponse](t, w).ItemCount)

	w = env.do(t, http.MethodGet, "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cart := decodeBody[cartResponse](t, w)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, domain.ProductID("1"), cart.Items[0].ProductID)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, "599.97", cart.Items[0].LineTotal)
	assert.True(t, cart.Items[0].Available)
	assert.Equal(t, domain.DefaultSize, cart.Items[1].Size)
	assert.False(t, cart.Items[1].Available)
	assert.Equal(t, "749.97", cart.Subtotal)
	assert.Equal(t, "R749.97", cart.SubtotalDisplay)
	assert.Equal(t, 4, cart.ItemCount)

	w = env.do(t, http.MethodPatch, "/api/cart/items", token, map[string]any{"productId": 1, "size": "M", "delta": -3})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decodeBody[countResponse](t, w).ItemCount)

	w = env.do(t, http.MethodDelete, "/api/cart/items?productId=2&size=One+Size", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decodeBody[countResponse](t, w).ItemCount)

	w = env.do(t, http.MethodGet, "/api/cart/count", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decodeBody[countResponse](t, w).ItemCount)
}

func TestAddItemRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.session(t)

	w := env.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{"productId": 1, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{"size": "M"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCartDropsVanishedProducts(t *testing.T) {
	env := newTestEnv(t)
	token, sessionID := env.session(t)

	require.NoError(t, env.repo.Save(context.Background(), sessionID, []domain.LineItem{
		{ProductID: "1", Size: "S", Quantity: 1, AddedAt: time.Now()},
		{ProductID: "99", Size: "S", Quantity: 5, AddedAt: time.Now()},
	}))

	w := env.do(t, http.MethodGet, "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cart := decodeBody[cartResponse](t, w)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.ItemCount)

	stored, err := env.repo.Load(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.ProductID("1"), stored[0].ProductID)
}

func TestGetCartCatalogOutage(t *testing.T) {
	env := newTestEnv(t)
	token, sessionID := env.session(t)
	require.NoError(t, env.repo.Save(context.Background(), sessionID, []domain.LineItem{
		{ProductID: "1", Size: "S", Quantity: 1, AddedAt: time.Now()},
	}))
	env.catalog.err = errors.New("connection refused")

	w := env.do(t, http.MethodGet, "/api/cart", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "catalog_unavailable", decodeBody[errorResponse](t, w).Code)

	stored, err := env.repo.Load(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

var validCustomer = map[string]string{
	"customerName":    "Jane Doe",
	"customerEmail":   "jane@example.com",
	"customerPhone":   "0820000000",
	"customerAddress": "1 Long St, Cape Town",
}

func TestCheckoutValidationSkipsCatalog(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.session(t)
	env.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{"productId": 1, "size": "S"})
	before := env.catalog.lookups()

	w := env.do(t, http.MethodPost, "/api/checkout/order", token, map[string]string{"customerName": "Jane", "customerEmail": " "})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeBody[errorResponse](t, w)
	assert.Equal(t, "validation_failed", resp.Code)
	assert.Contains(t, resp.Error, "email")
	assert.Equal(t, before, env.catalog.lookups())
	assert.Empty(t, env.orders.reqs)
}

func TestCheckoutEmptyCart(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.session(t)

	w := env.do(t, http.MethodPost, "/api/checkout/message", token, validCustomer)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "empty_cart", decodeBody[errorResponse](t, w).Code)
}

func TestCheckoutMessageClearsCart(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.session(t)
	env.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{"productId": 1, "size": "L", "quantity": 2})

	w := env.do(t, http.MethodPost, "/api/checkout/message", token, validCustomer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[messageCheckoutResponse](t, w)
	assert.Equal(t, "message", resp.Channel)
	assert.Contains(t, resp.URL, "https://wa.me/27820000000?text=")
	assert.Contains(t, resp.Message, "Logo Tee")
	assert.Equal(t, "399.98", resp.Total)

	w = env.do(t, http.MethodGet, "/api/cart/count", token, nil)
	assert.Equal(t, 0, decodeBody[countResponse](t, w).ItemCount)
}

func TestCheckoutOrder(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.session(t)
	env.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{"productId": 1, "size": "S"})

	w := env.do(t, http.MethodPost, "/api/checkout/order", token, validCustomer, idempotencyHeader, "abc")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decodeBody[orderCheckoutResponse](t, w)
	assert.Equal(t, "backend", resp.Channel)
	assert.Equal(t, "101", resp.OrderID)
	require.Len(t, env.orders.reqs, 1)
	assert.Equal(t, "199.99", env.orders.reqs[0].TotalAmount.StringFixed(2))

	w = env.do(t, http.MethodGet, "/api/cart/count", token, nil)
	assert.Equal(t, 0, decodeBody[countResponse](t, w).ItemCount)
}

func TestCheckoutOrderBackendFailureKeepsCart(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.session(t)
	env.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{"productId": 1, "size": "S"})
	env.orders.err = errors.New("backend down")

	w := env.do(t, http.MethodPost, "/api/checkout/order", token, validCustomer)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "order_submission_failed", decodeBody[errorResponse](t, w).Code)

	w = env.do(t, http.MethodGet, "/api/cart/count", token, nil)
	assert.Equal(t, 1, decodeBody[countResponse](t, w).ItemCount)
}

func TestProducts(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/products?category=tshirts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	products := decodeBody[[]productResponse](t, w)
	require.Len(t, products, 1)
	assert.Equal(t, []string{"S", "M", "L"}, products[0].SizeOptions)
	assert.True(t, products[0].InStock)

	w = env.do(t, http.MethodGet, "/api/products/2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	p := decodeBody[productResponse](t, w)
	assert.Equal(t, []string{domain.DefaultSize}, p.SizeOptions)
	assert.False(t, p.InStock)

	w = env.do(t, http.MethodGet, "/api/products/77", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/products?sort=random", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	auth := []string{"Authorization", "Bearer admin-token"}

	w := env.do(t, http.MethodGet, "/api/admin/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/admin/stats", "", nil, auth...)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decodeBody[statsResponse](t, w)
	assert.Equal(t, "1250.50", stats.TotalSales)
	assert.Equal(t, 2, stats.LowStockCount)
	assert.True(t, stats.LowStockProducts[0].Critical)
	assert.False(t, stats.LowStockProducts[1].Critical)

	w = env.do(t, http.MethodGet, "/api/admin/orders?status=shipped", "", nil, auth...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]domain.Order](t, w), 1)

	w = env.do(t, http.MethodPut, "/api/admin/orders/1", "", map[string]string{"status": "confirmed"}, auth...)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, "/api/admin/orders/1", "", map[string]string{"status": "lost"}, auth...)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/admin/orders/404", "", map[string]string{"status": "shipped"}, auth...)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/readyz", "", nil).Code)
}

func TestCheckoutOrderReplaysIdempotencyKey(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.session(t)
	env.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{"productId": 1, "size": "S"})

	w := env.do(t, http.MethodPost, "/api/checkout/order", token, validCustomer, idempotencyHeader, "retry-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decodeBody[orderCheckoutResponse](t, w)

	w = env.do(t, http.MethodPost, "/api/checkout/order", token, validCustomer, idempotencyHeader, "retry-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	second := decodeBody[orderCheckoutResponse](t, w)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.True(t, second.Replayed)
	assert.Len(t, env.orders.reqs, 1)

	w = env.do(t, http.MethodPost, "/api/checkout/order", token, validCustomer, idempotencyHeader, "fresh")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "empty_cart", decodeBody[errorResponse](t, w).Code)

	other, _ := env.session(t)
	w = env.do(t, http.MethodPost, "/api/checkout/order", other, validCustomer, idempotencyHeader, "retry-1")
	assert.Equal(t, http.StatusConflict, w.Code, "keys are scoped to the session")
}
