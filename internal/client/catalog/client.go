// Package catalog — HTTP-клиент каталога товаров (только чтение).
package catalog

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/client/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Client реализует domain.CatalogService поверх HTTP.
type Client struct {
	api *httpapi.Client
}

var _ domain.CatalogService = (*Client)(nil)

// New создаёт клиент каталога.
func New(baseURL string, options ...httpapi.Option) (*Client, error) {
	api, err := httpapi.New("catalog", baseURL, options...)
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

// ListProducts — GET /products.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.api.Do(ctx, httpapi.Request{Method: http.MethodGet, Path: "/products"}, &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// GetProduct — GET /products/{id}.
func (c *Client) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	var product domain.Product
	path := fmt.Sprintf("/products/%d", id)
	if err := c.api.Do(ctx, httpapi.Request{Method: http.MethodGet, Path: path}, &product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}
