package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/soss111/maker-set-sub000/pkg/httpclient"
)

// SettingsClient reads platform-wide settings from the settings service.
type SettingsClient struct {
	baseURL string
	client  *httpclient.CircuitBreakerClient
}

// NewSettingsClient creates a settings service client.
func NewSettingsClient(baseURL string, client *httpclient.CircuitBreakerClient) *SettingsClient {
	return &SettingsClient{baseURL: baseURL, client: client}
}

type shippingCostResponse struct {
	Data struct {
		Value decimal.Decimal `json:"value"`
	} `json:"data"`
}

// GetShippingHandlingCost fetches the flat shipping and handling cost applied
// to every cart. Callers fall back to a configured default on error.
func (c *SettingsClient) GetShippingHandlingCost(ctx context.Context) (decimal.Decimal, error) {
	url := c.baseURL + "/api/v1/settings/shipping-handling-cost"

	resp, err := c.client.Get(ctx, url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("settings get shipping cost: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, httpclient.ParseResponseError(resp, "settings")
	}
	defer func() { _ = resp.Body.Close() }()

	var body shippingCostResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode settings response: %w", err)
	}

	return body.Data.Value, nil
}
