package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus — статус заказа в сервисе заказов. Заказом владеет удалённый сервис,
// здесь статус только читается.
type OrderStatus string

const (
	OrderStatusPending           OrderStatus = "PENDING"
	OrderStatusConfirmed         OrderStatus = "CONFIRMED"
	OrderStatusPaymentProcessing OrderStatus = "PAYMENT_PROCESSING"
	OrderStatusPaid              OrderStatus = "PAID"
	OrderStatusProcessing        OrderStatus = "PROCESSING"
	OrderStatusShipped           OrderStatus = "SHIPPED"
	OrderStatusDelivered         OrderStatus = "DELIVERED"
	OrderStatusCancelled         OrderStatus = "CANCELLED"
	OrderStatusFailed            OrderStatus = "FAILED"
)

// OrderLine — позиция заказа в формате сервиса заказов.
type OrderLine struct {
	ProductID   int64
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

// Order — удалённый ресурс сервиса заказов.
type Order struct {
	ID              int64
	Status          OrderStatus
	TotalAmount     decimal.Decimal
	PaymentID       *int64
	CustomerEmail   string
	CustomerName    string
	ShippingAddress string
	PaymentMethod   string
	Items           []OrderLine
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CustomerInfo — данные покупателя из формы оформления.
type CustomerInfo struct {
	Email           string
	Name            string
	ShippingAddress string
}

// Validate проверяет обязательные поля покупателя.
func (c CustomerInfo) Validate() error {
	switch {
	case strings.TrimSpace(c.Email) == "":
		return ErrCustomerEmailRequired
	case strings.TrimSpace(c.Name) == "":
		return ErrCustomerNameRequired
	case strings.TrimSpace(c.ShippingAddress) == "":
		return ErrShippingAddressRequired
	}
	return nil
}

// CheckoutRequest собирается один раз на попытку оформления из корзины и формы.
type CheckoutRequest struct {
	CustomerEmail   string
	CustomerName    string
	ShippingAddress string
	PaymentMethod   PaymentMethod
	PaymentDetails  string
	Items           []OrderLine
	// IdempotencyKey передаётся сервису заказов заголовком, тело запроса не меняется.
	IdempotencyKey string
}

// NewCheckoutRequest отображает позиции корзины в позиции заказа.
func NewCheckoutRequest(lines []CartLine, customer CustomerInfo, choice PaymentChoice) CheckoutRequest {
	items := make([]OrderLine, 0, len(lines))
	for _, line := range lines {
		items = append(items, OrderLine{
			ProductID:   line.ProductID,
			ProductName: line.Name,
			Quantity:    line.Quantity,
			Price:       line.UnitPrice,
		})
	}
	return CheckoutRequest{
		CustomerEmail:   strings.TrimSpace(customer.Email),
		CustomerName:    strings.TrimSpace(customer.Name),
		ShippingAddress: strings.TrimSpace(customer.ShippingAddress),
		PaymentMethod:   choice.Method,
		PaymentDetails:  choice.Details,
		Items:           items,
	}
}
