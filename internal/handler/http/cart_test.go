package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/soss111/maker-set-sub000/pkg/errors"
	"github.com/soss111/maker-set-sub000/pkg/health"

	"github.com/soss111/maker-set-sub000/internal/domain"
	"github.com/soss111/maker-set-sub000/internal/service"
)

type mockRepo struct{ mock.Mock }

func (m *mockRepo) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	args := m.Called(ctx, userID)
	if cart := args.Get(0); cart != nil {
		return cart.(*domain.Cart), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepo) Save(ctx context.Context, cart *domain.Cart) error {
	return m.Called(ctx, cart).Error(0)
}

func (m *mockRepo) Delete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) GetSet(ctx context.Context, setID int64) (*domain.Set, error) {
	args := m.Called(ctx, setID)
	if set := args.Get(0); set != nil {
		return set.(*domain.Set), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockInventory struct{ mock.Mock }

func (m *mockInventory) Reserve(ctx context.Context, userID string, setID int64, quantity int) error {
	return m.Called(ctx, userID, setID, quantity).Error(0)
}

func (m *mockInventory) Release(ctx context.Context, userID string, setID int64, quantity int) error {
	return m.Called(ctx, userID, setID, quantity).Error(0)
}

func (m *mockInventory) ReleaseAll(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockInventory) ValidateStock(ctx context.Context, items []domain.StockCheckItem) (*domain.StockValidation, error) {
	args := m.Called(ctx, items)
	if result := args.Get(0); result != nil {
		return result.(*domain.StockValidation), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	return m.Called(ctx, cart).Error(0)
}

func (m *mockPublisher) PublishCartCleared(ctx context.Context, userID string, expired bool) error {
	return m.Called(ctx, userID, expired).Error(0)
}

type testEnv struct {
	repo      *mockRepo
	catalog   *mockCatalog
	inventory *mockInventory
	producer  *mockPublisher
	router    http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		repo:      &mockRepo{},
		catalog:   &mockCatalog{},
		inventory: &mockInventory{},
		producer:  &mockPublisher{},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewCartService(
		env.repo, env.catalog, env.inventory, env.producer,
		logger, 7*24*time.Hour, decimal.NewFromInt(15),
	)
	env.router = NewRouter(svc, health.NewHandler(), logger, RouterConfig{})

	return env
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	envelope := decodeEnvelope(t, rec)
	errObj, ok := envelope["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got: %s", rec.Body.String())
	code, _ := errObj["code"].(string)
	return code
}

func storedCart(items ...domain.CartItem) *domain.Cart {
	now := time.Now().UTC()
	return &domain.Cart{
		UserID:    "user-1",
		Items:     items,
		Discount:  decimal.Zero,
		CreatedAt: now.Add(-time.Hour),
		UpdatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(7 * 24 * time.Hour),
	}
}

func storedItem(setID int64, qty int, price string) domain.CartItem {
	d, _ := decimal.NewFromString(price)
	item := domain.CartItem{SetID: setID, Quantity: qty, Name: "Set", UnitPrice: d}
	item.RecalculateTotal()
	return item
}

func TestCartRoutesRequireLogin(t *testing.T) {
	env := newTestEnv(t)

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/cart"},
		{http.MethodDelete, "/api/v1/cart"},
		{http.MethodPost, "/api/v1/cart/items"},
		{http.MethodPut, "/api/v1/cart/items/5"},
		{http.MethodDelete, "/api/v1/cart/items/5"},
		{http.MethodPost, "/api/v1/cart/validate-stock"},
		{http.MethodPost, "/api/v1/cart/expiry-check"},
		{http.MethodPost, "/api/v1/cart/discount"},
		{http.MethodDelete, "/api/v1/cart/discount"},
	} {
		rec := env.do(t, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
		assert.Equal(t, "LOGIN_REQUIRED", errorCode(t, rec), "%s %s", route.method, route.path)
	}
}

func TestGetCartReturnsView(t *testing.T) {
	env := newTestEnv(t)
	env.repo.On("Get", mock.Anything, "user-1").Return(storedCart(storedItem(5, 2, "10.00")), nil)

	rec := env.do(t, http.MethodGet, "/api/v1/cart", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	data, ok := envelope["data"].(map[string]any)
	require.True(t, ok)

	// 2 items at 10.00 plus the 15.00 handling fee.
	assert.Equal(t, float64(3), data["total_items"])
	assert.Equal(t, "35", data["total_price"])

	shipping, ok := data["shipping"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "15", shipping["cost"])
}

func TestGetCartEmptyForNewUser(t *testing.T) {
	env := newTestEnv(t)
	env.repo.On("Get", mock.Anything, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))

	rec := env.do(t, http.MethodGet, "/api/v1/cart", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(0), data["total_items"])
}

func TestAddItemValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "user-1", map[string]any{"set_id": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestAddItemProviderConflict(t *testing.T) {
	env := newTestEnv(t)

	pid := int64(2)
	price := decimal.NewFromInt(20)
	env.catalog.On("GetSet", mock.Anything, int64(9)).Return(&domain.Set{
		ID:           9,
		Name:         "Windmill",
		DisplayPrice: &price,
		ProviderID:   &pid,
		Parts:        []domain.SetPart{{PartID: 1, Name: "Blade", Quantity: 4, IsRequired: true}},
	}, nil)
	env.repo.On("Get", mock.Anything, "user-1").Return(storedCart(storedItem(5, 1, "10.00")), nil)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "user-1", map[string]any{"set_id": 9, "quantity": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "PROVIDER_CONFLICT", errorCode(t, rec))
}

func TestAddItemUnprocessableSet(t *testing.T) {
	env := newTestEnv(t)

	price := decimal.NewFromInt(20)
	env.catalog.On("GetSet", mock.Anything, int64(9)).Return(&domain.Set{
		ID:           9,
		Name:         "Windmill",
		DisplayPrice: &price,
	}, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "user-1", map[string]any{"set_id": 9, "quantity": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "PARTS_NOT_CONFIGURED", errorCode(t, rec))
}

func TestUpdateItemQuantity(t *testing.T) {
	env := newTestEnv(t)

	env.repo.On("Get", mock.Anything, "user-1").Return(storedCart(storedItem(5, 1, "10.00")), nil)
	env.inventory.On("Reserve", mock.Anything, "user-1", int64(5), 2).Return(nil)
	env.repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	env.producer.On("PublishCartUpdated", mock.Anything, mock.Anything).Return(nil)

	rec := env.do(t, http.MethodPut, "/api/v1/cart/items/5", "user-1", map[string]any{"quantity": 3})
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(4), data["total_items"], "3 items plus the handling fee")
}

func TestUpdateItemQuantityBadSetID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/v1/cart/items/abc", "user-1", map[string]any{"quantity": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, rec))
}

func TestRemoveMissingItemIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	env.repo.On("Get", mock.Anything, "user-1").Return(storedCart(), nil)

	rec := env.do(t, http.MethodDelete, "/api/v1/cart/items/5", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(0), data["total_items"])
}

func TestClearCart(t *testing.T) {
	env := newTestEnv(t)

	env.repo.On("Get", mock.Anything, "user-1").Return(storedCart(storedItem(5, 2, "10.00")), nil)
	env.inventory.On("ReleaseAll", mock.Anything, "user-1").Return(nil)
	env.repo.On("Delete", mock.Anything, "user-1").Return(nil)
	env.producer.On("PublishCartCleared", mock.Anything, "user-1", false).Return(nil)

	rec := env.do(t, http.MethodDelete, "/api/v1/cart", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(0), data["total_items"])
}

func TestApplyAndRemoveDiscount(t *testing.T) {
	env := newTestEnv(t)

	env.repo.On("Get", mock.Anything, "user-1").Return(storedCart(storedItem(5, 1, "30.00")), nil)
	env.repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	env.producer.On("PublishCartUpdated", mock.Anything, mock.Anything).Return(nil)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/discount", "user-1", map[string]any{"code": "SAVE5", "amount": "5.00"})
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, "5", data["discount"])

	rec = env.do(t, http.MethodDelete, "/api/v1/cart/discount", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateStockEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.repo.On("Get", mock.Anything, "user-1").Return(storedCart(storedItem(5, 3, "10.00")), nil)
	env.inventory.On("ValidateStock", mock.Anything, mock.Anything).Return(&domain.StockValidation{
		Valid:   false,
		Results: []domain.StockCheckResult{{SetID: 5, Valid: false, Error: "insufficient stock"}},
		Summary: domain.StockSummary{TotalItems: 1, InvalidItems: 1},
	}, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/validate-stock", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, false, data["valid"])
}

func TestValidateStockFailureIsBadGateway(t *testing.T) {
	env := newTestEnv(t)

	env.repo.On("Get", mock.Anything, "user-1").Return(storedCart(storedItem(5, 1, "10.00")), nil)
	env.inventory.On("ValidateStock", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/validate-stock", "user-1", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "STOCK_VALIDATION_FAILED", errorCode(t, rec))
}

func TestExpiryCheckEndpoint(t *testing.T) {
	env := newTestEnv(t)

	expired := storedCart(storedItem(5, 1, "10.00"))
	expired.ExpiresAt = time.Now().UTC().Add(-time.Hour)

	env.repo.On("Get", mock.Anything, "user-1").Return(expired, nil)
	env.repo.On("Delete", mock.Anything, "user-1").Return(nil)
	env.inventory.On("ReleaseAll", mock.Anything, "user-1").Return(nil)
	env.producer.On("PublishCartCleared", mock.Anything, "user-1", true).Return(nil)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/expiry-check", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, true, data["expired"])
}

func TestContentTypeEnforced(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewReader([]byte("set_id=5")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-User-ID", "user-1")

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
