// Package orders — HTTP-клиент сервиса заказов.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/client/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// IdempotencyKeyHeader — заголовок с ключом идемпотентности создания заказа.
const IdempotencyKeyHeader = "Idempotency-Key"

// Client реализует domain.OrderService поверх HTTP.
type Client struct {
	api *httpapi.Client
}

var _ domain.OrderService = (*Client)(nil)

// New создаёт клиент; baseURL указывает на корень API (например, http://gateway/api).
func New(baseURL string, options ...httpapi.Option) (*Client, error) {
	api, err := httpapi.New("orders", baseURL, options...)
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

type createOrderRequest struct {
	CustomerEmail   string             `json:"customerEmail"`
	CustomerName    string             `json:"customerName"`
	ShippingAddress string             `json:"shippingAddress"`
	PaymentMethod   string             `json:"paymentMethod"`
	PaymentDetails  string             `json:"paymentDetails"`
	Items           []createItemRecord `json:"items"`
}

type createItemRecord struct {
	ProductID   int64       `json:"productId"`
	ProductName string      `json:"productName"`
	Quantity    int         `json:"quantity"`
	Price       json.Number `json:"price"`
}

type orderDTO struct {
	ID              int64             `json:"id"`
	CustomerEmail   string            `json:"customerEmail"`
	CustomerName    string            `json:"customerName"`
	Status          string            `json:"status"`
	TotalAmount     decimal.Decimal   `json:"totalAmount"`
	Items           []orderLineDTO    `json:"items"`
	ShippingAddress string            `json:"shippingAddress"`
	PaymentMethod   string            `json:"paymentMethod"`
	PaymentID       *int64            `json:"paymentId"`
	CreatedAt       httpapi.Timestamp `json:"createdAt"`
	UpdatedAt       httpapi.Timestamp `json:"updatedAt"`
}

type orderLineDTO struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

func (d orderDTO) toDomain() domain.Order {
	items := make([]domain.OrderLine, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderLine{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return domain.Order{
		ID:              d.ID,
		Status:          domain.OrderStatus(strings.ToUpper(d.Status)),
		TotalAmount:     d.TotalAmount,
		PaymentID:       d.PaymentID,
		CustomerEmail:   d.CustomerEmail,
		CustomerName:    d.CustomerName,
		ShippingAddress: d.ShippingAddress,
		PaymentMethod:   d.PaymentMethod,
		Items:           items,
		CreatedAt:       d.CreatedAt.Time,
		UpdatedAt:       d.UpdatedAt.Time,
	}
}

// Create отправляет POST /orders. Ключ идемпотентности уходит заголовком.
func (c *Client) Create(ctx context.Context, req domain.CheckoutRequest) (domain.Order, error) {
	body := createOrderRequest{
		CustomerEmail:   req.CustomerEmail,
		CustomerName:    req.CustomerName,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   string(req.PaymentMethod),
		PaymentDetails:  req.PaymentDetails,
		Items:           make([]createItemRecord, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		body.Items = append(body.Items, createItemRecord{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       httpapi.Money(item.Price),
		})
	}

	header := http.Header{}
	if req.IdempotencyKey != "" {
		header.Set(IdempotencyKeyHeader, req.IdempotencyKey)
	}

	var out orderDTO
	if err := c.api.Do(ctx, httpapi.Request{Method: http.MethodPost, Path: "/orders", Body: body, Header: header}, &out); err != nil {
		return domain.Order{}, err
	}
	if out.ID == 0 {
		return domain.Order{}, fmt.Errorf("orders: create response has no id")
	}
	return out.toDomain(), nil
}

// AttachPayment отправляет PUT /orders/{id}/payment.
func (c *Client) AttachPayment(ctx context.Context, orderID, paymentID int64) (domain.Order, error) {
	body := struct {
		PaymentID int64 `json:"paymentId"`
	}{PaymentID: paymentID}

	var out orderDTO
	path := fmt.Sprintf("/orders/%d/payment", orderID)
	if err := c.api.Do(ctx, httpapi.Request{Method: http.MethodPut, Path: path, Body: body}, &out); err != nil {
		return domain.Order{}, err
	}
	return out.toDomain(), nil
}

// ListByCustomer отправляет GET /orders/customer/{email}.
func (c *Client) ListByCustomer(ctx context.Context, email string) ([]domain.Order, error) {
	var out []orderDTO
	path := "/orders/customer/" + url.PathEscape(strings.TrimSpace(email))
	if err := c.api.Do(ctx, httpapi.Request{Method: http.MethodGet, Path: path}, &out); err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(out))
	for _, dto := range out {
		orders = append(orders, dto.toDomain())
	}
	return orders, nil
}
