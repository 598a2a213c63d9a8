// Package payments — HTTP-клиент платёжного сервиса.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/client/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Client реализует domain.PaymentService поверх HTTP.
type Client struct {
	api *httpapi.Client
}

var _ domain.PaymentService = (*Client)(nil)

// New создаёт клиент платёжного сервиса.
func New(baseURL string, options ...httpapi.Option) (*Client, error) {
	api, err := httpapi.New("payments", baseURL, options...)
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

type processRequest struct {
	OrderID        int64       `json:"orderId"`
	Amount         json.Number `json:"amount"`
	PaymentMethod  string      `json:"paymentMethod"`
	PaymentDetails string      `json:"paymentDetails"`
}

type paymentDTO struct {
	ID            int64             `json:"id"`
	OrderID       int64             `json:"orderId"`
	Amount        decimal.Decimal   `json:"amount"`
	Method        string            `json:"method"`
	Status        string            `json:"status"`
	TransactionID string            `json:"transactionId"`
	CreatedAt     httpapi.Timestamp `json:"createdAt"`
}

// Process отправляет POST /payments/process. Статус платежа не интерпретируется:
// решение об успехе принимает вызывающий по Payment.Succeeded.
func (c *Client) Process(ctx context.Context, req domain.PaymentRequest) (domain.Payment, error) {
	body := processRequest{
		OrderID:        req.OrderID,
		Amount:         httpapi.Money(req.Amount),
		PaymentMethod:  string(req.Method),
		PaymentDetails: req.Details,
	}

	var out paymentDTO
	if err := c.api.Do(ctx, httpapi.Request{Method: http.MethodPost, Path: "/payments/process", Body: body}, &out); err != nil {
		return domain.Payment{}, err
	}
	if out.Status == "" {
		return domain.Payment{}, fmt.Errorf("payments: process response has no status")
	}
	return domain.Payment{
		ID:            out.ID,
		OrderID:       out.OrderID,
		Status:        domain.PaymentStatus(strings.ToUpper(out.Status)),
		Amount:        out.Amount,
		Method:        domain.PaymentMethod(out.Method),
		TransactionID: out.TransactionID,
		CreatedAt:     out.CreatedAt.Time,
	}, nil
}
