package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/soss111/maker-set-sub000/pkg/httpclient"

	"github.com/soss111/maker-set-sub000/internal/domain"
)

// CatalogClient fetches set descriptors from the catalog service.
type CatalogClient struct {
	baseURL string
	client  *httpclient.CircuitBreakerClient
}

// NewCatalogClient creates a catalog service client.
func NewCatalogClient(baseURL string, client *httpclient.CircuitBreakerClient) *CatalogClient {
	return &CatalogClient{baseURL: baseURL, client: client}
}

type setResponse struct {
	Data *domain.Set `json:"data"`
}

// GetSet fetches a set by ID, including its parts list and provider fields.
func (c *CatalogClient) GetSet(ctx context.Context, setID int64) (*domain.Set, error) {
	url := fmt.Sprintf("%s/api/v1/sets/%d", c.baseURL, setID)

	resp, err := c.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("catalog get set: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "catalog")
	}
	defer func() { _ = resp.Body.Close() }()

	var body setResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}
	if body.Data == nil {
		return nil, fmt.Errorf("catalog returned empty set payload")
	}

	return body.Data, nil
}
