package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderService описывает удалённый сервис заказов.
type OrderService interface {
	// Create создаёт заказ (POST /orders).
	Create(ctx context.Context, req CheckoutRequest) (Order, error)
	// AttachPayment привязывает платёж к заказу (PUT /orders/{id}/payment).
	AttachPayment(ctx context.Context, orderID, paymentID int64) (Order, error)
	// ListByCustomer возвращает заказы покупателя (GET /orders/customer/{email}).
	ListByCustomer(ctx context.Context, email string) ([]Order, error)
}

// PaymentService описывает удалённый платёжный сервис.
type PaymentService interface {
	// Process проводит платёж по заказу (POST /payments/process).
	Process(ctx context.Context, req PaymentRequest) (Payment, error)
}

// CatalogService — контракт каталога товаров, только чтение.
type CatalogService interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
}

// CartStorage — долговременное хранилище сериализованных корзин.
type CartStorage interface {
	// Load возвращает ErrCartNotFound, если под ключом ничего нет.
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// CheckoutEventPublisher публикует итоги попыток оформления для внешней сверки.
type CheckoutEventPublisher interface {
	Publish(ctx context.Context, event CheckoutEvent) error
}

// CheckoutOutcome — чем закончилась попытка оформления.
type CheckoutOutcome string

const (
	CheckoutOutcomeSucceeded CheckoutOutcome = "SUCCEEDED"
	CheckoutOutcomeFailed    CheckoutOutcome = "FAILED"
	CheckoutOutcomeCanceled  CheckoutOutcome = "CANCELED"
)

// CheckoutEvent — итог одной попытки оформления.
type CheckoutEvent struct {
	SessionID   string
	IdentityKey string
	Outcome     CheckoutOutcome
	Kind        ErrorKind
	OrderID     int64
	PaymentID   int64
	Amount      decimal.Decimal
	Message     string
	OccurredAt  time.Time
}

// NeedsReconciliation проверяет, есть ли расхождение между заказом и оплатой.
func (e CheckoutEvent) NeedsReconciliation() bool {
	return e.Outcome == CheckoutOutcomeFailed && (e.Kind == KindPayment || e.Kind == KindConfirmation)
}
