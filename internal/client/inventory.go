package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/soss111/maker-set-sub000/pkg/httpclient"

	"github.com/soss111/maker-set-sub000/internal/domain"
)

// InventoryClient talks to the inventory service for stock reservations and
// checkout-time validation.
type InventoryClient struct {
	baseURL string
	client  *httpclient.CircuitBreakerClient
}

// NewInventoryClient creates an inventory service client.
func NewInventoryClient(baseURL string, client *httpclient.CircuitBreakerClient) *InventoryClient {
	return &InventoryClient{baseURL: baseURL, client: client}
}

type reservationRequest struct {
	UserID   string `json:"user_id"`
	SetID    int64  `json:"set_id"`
	Quantity int    `json:"quantity"`
}

// Reserve asks the inventory service to hold stock for a user. Failure here
// is advisory; the authoritative check happens at checkout validation.
func (c *InventoryClient) Reserve(ctx context.Context, userID string, setID int64, quantity int) error {
	body, err := json.Marshal(reservationRequest{UserID: userID, SetID: setID, Quantity: quantity})
	if err != nil {
		return fmt.Errorf("marshal reservation: %w", err)
	}

	url := c.baseURL + "/api/v1/inventory/reservations"
	resp, err := c.client.Post(ctx, url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("inventory reserve: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return httpclient.ParseResponseError(resp, "inventory")
	}
	_ = resp.Body.Close()

	return nil
}

// Release returns previously reserved stock for a single set.
func (c *InventoryClient) Release(ctx context.Context, userID string, setID int64, quantity int) error {
	body, err := json.Marshal(reservationRequest{UserID: userID, SetID: setID, Quantity: quantity})
	if err != nil {
		return fmt.Errorf("marshal release: %w", err)
	}

	url := c.baseURL + "/api/v1/inventory/reservations/release"
	resp, err := c.client.Post(ctx, url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("inventory release: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return httpclient.ParseResponseError(resp, "inventory")
	}
	_ = resp.Body.Close()

	return nil
}

// ReleaseAll drops every reservation held for a user, used when the cart is
// cleared or expires.
func (c *InventoryClient) ReleaseAll(ctx context.Context, userID string) error {
	url := fmt.Sprintf("%s/api/v1/inventory/reservations/%s", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create release-all request: %w", err)
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("inventory release all: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return httpclient.ParseResponseError(resp, "inventory")
	}
	_ = resp.Body.Close()

	return nil
}

type validateStockRequest struct {
	Items []domain.StockCheckItem `json:"items"`
}

type validateStockResponse struct {
	Data *domain.StockValidation `json:"data"`
}

// ValidateStock submits the cart's lines for authoritative stock validation.
func (c *InventoryClient) ValidateStock(ctx context.Context, items []domain.StockCheckItem) (*domain.StockValidation, error) {
	body, err := json.Marshal(validateStockRequest{Items: items})
	if err != nil {
		return nil, fmt.Errorf("marshal stock validation: %w", err)
	}

	url := c.baseURL + "/api/v1/inventory/validate"
	resp, err := c.client.Post(ctx, url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("inventory validate stock: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "inventory")
	}
	defer func() { _ = resp.Body.Close() }()

	var out validateStockResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode stock validation response: %w", err)
	}
	if out.Data == nil {
		return nil, fmt.Errorf("inventory returned empty validation payload")
	}

	return out.Data, nil
}
