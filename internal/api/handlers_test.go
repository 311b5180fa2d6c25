package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/order-engine/internal/auth"
	"github.com/example/order-engine/internal/command"
	"github.com/example/order-engine/internal/domain/cart"
	"github.com/example/order-engine/internal/domain/inventory"
	"github.com/example/order-engine/internal/domain/order"
	"github.com/example/order-engine/internal/domain/ordernumber"
	"github.com/example/order-engine/internal/domain/payment"
	"github.com/example/order-engine/internal/domain/product"
	"github.com/example/order-engine/internal/infrastructure/store/mocks"
	"github.com/example/order-engine/internal/metrics"
	"github.com/example/order-engine/internal/query"
	"github.com/example/order-engine/internal/readmodel"
)

type okSettlement struct{}

func (okSettlement) Verify(ctx context.Context, orderNumber, transactionID string, amount int64) error {
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockReadStore, *auth.JWTService) {
	t.Helper()

	eventStore := mocks.NewMockEventStore()
	readStore := mocks.NewMockReadStore()

	productSvc := product.NewService(eventStore)
	cartSvc := cart.NewService(eventStore)
	orderSvc := order.NewService(eventStore, ordernumber.NewMemorySequence("ORD"), order.Policy{
		ShippingFlatFee:       30000,
		FreeShippingThreshold: 500000,
		ReturnWindow:          7 * 24 * time.Hour,
	})
	inventorySvc := inventory.NewService(eventStore)
	payments := payment.NewManager(orderSvc, okSettlement{}, "MERCHANT-01", 15*time.Minute, time.Second)
	queries := query.NewHandler(readStore)

	commands := command.NewHandler(productSvc, cartSvc, orderSvc, inventorySvc, payments, queries, nil)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	jwtService := auth.NewJWTService("router-test-secret", 15*time.Minute)
	handlers := NewHandlers(commands, queries, log)
	return NewRouter(handlers, jwtService, metrics.Noop(), log), readStore, jwtService
}

func authHeader(t *testing.T, jwtService *auth.JWTService, userID, role string) string {
	t.Helper()
	token, _, err := jwtService.GenerateAccessToken(userID, userID+"@example.com", role)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouter_HealthCheck(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestRouter_GetProducts_Public(t *testing.T) {
	router, readStore, _ := newTestRouter(t)
	readStore.SetData(readmodel.Products, "prod-1", &readmodel.ProductReadModel{
		ID: "prod-1", Name: "T-Shirt", Price: 120000,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "T-Shirt")
}

func TestRouter_CreateProduct_RequiresAdmin(t *testing.T) {
	router, _, jwtService := newTestRouter(t)
	body := `{"name":"T-Shirt","sku":"TS-01","price":120000}`

	// No token at all.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Customer token.
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
	req.Header.Set("Authorization", authHeader(t, jwtService, "user-1", auth.RoleCustomer))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Admin token.
	req = httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
	req.Header.Set("Authorization", authHeader(t, jwtService, "admin-1", auth.RoleAdmin))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRouter_CartRequiresAuth(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cart", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_AddToCart(t *testing.T) {
	router, readStore, jwtService := newTestRouter(t)
	readStore.SetData(readmodel.Products, "prod-1", &readmodel.ProductReadModel{
		ID: "prod-1", Name: "T-Shirt", Price: 120000, Status: string(product.StatusActive),
	})

	body := `{"product_id":"prod-1","size":"M","color":"black","quantity":2}`
	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(body))
	req.Header.Set("Authorization", authHeader(t, jwtService, "user-1", auth.RoleCustomer))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_GetOrder_OwnerOnly(t *testing.T) {
	router, readStore, jwtService := newTestRouter(t)
	readStore.SetData(readmodel.Orders, "order-1", &readmodel.OrderReadModel{
		ID: "order-1", UserID: "user-1", Status: string(order.StatusPending),
	})

	// The owner can read it.
	req := httptest.NewRequest(http.MethodGet, "/orders/order-1", nil)
	req.Header.Set("Authorization", authHeader(t, jwtService, "user-1", auth.RoleCustomer))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Someone else cannot.
	req = httptest.NewRequest(http.MethodGet, "/orders/order-1", nil)
	req.Header.Set("Authorization", authHeader(t, jwtService, "user-2", auth.RoleCustomer))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Admins can.
	req = httptest.NewRequest(http.MethodGet, "/orders/order-1", nil)
	req.Header.Set("Authorization", authHeader(t, jwtService, "admin-1", auth.RoleAdmin))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AdminOrders(t *testing.T) {
	router, readStore, jwtService := newTestRouter(t)
	readStore.SetData(readmodel.Orders, "order-1", &readmodel.OrderReadModel{
		ID: "order-1", UserID: "user-1", Status: string(order.StatusShipped),
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/orders?status=shipped", nil)
	req.Header.Set("Authorization", authHeader(t, jwtService, "admin-1", auth.RoleAdmin))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "order-1")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"order not found", order.ErrOrderNotFound, http.StatusNotFound},
		{"empty order", order.ErrEmptyOrder, http.StatusBadRequest},
		{"invalid transition", order.ErrInvalidStatus, http.StatusConflict},
		{"already paid", order.ErrOrderAlreadyPaid, http.StatusConflict},
		{"insufficient stock", inventory.ErrInsufficientStock, http.StatusConflict},
		{"session expired", payment.ErrSessionExpired, http.StatusGone},
		{"verification failed", payment.ErrVerificationFailed, http.StatusPaymentRequired},
		{"unknown", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
