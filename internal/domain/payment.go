package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod — способ оплаты, поддерживаемый платёжным сервисом.
type PaymentMethod string

const (
	PaymentMethodCreditCard     PaymentMethod = "CREDIT_CARD"
	PaymentMethodPayPal         PaymentMethod = "PAYPAL"
	PaymentMethodBankTransfer   PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
)

// Valid проверяет, что способ оплаты известен платёжному сервису.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodPayPal, PaymentMethodBankTransfer, PaymentMethodCashOnDelivery:
		return true
	default:
		return false
	}
}

// PaymentStatus описывает состояние платежа в платёжном сервисе.
type PaymentStatus string

const (
	// PaymentStatusCompleted — единственный статус, который считается успехом.
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
)

// PaymentChoice — выбранный покупателем способ оплаты и его реквизиты.
type PaymentChoice struct {
	Method  PaymentMethod
	Details string
}

// Validate проверяет способ оплаты.
func (c PaymentChoice) Validate() error {
	if !c.Method.Valid() {
		return ErrPaymentMethodInvalid
	}
	return nil
}

// PaymentRequest — тело вызова process платёжного сервиса.
type PaymentRequest struct {
	OrderID int64
	Amount  decimal.Decimal
	Method  PaymentMethod
	Details string
}

// Payment — удалённый ресурс платёжного сервиса.
type Payment struct {
	ID            int64
	OrderID       int64
	Status        PaymentStatus
	Amount        decimal.Decimal
	Method        PaymentMethod
	TransactionID string
	CreatedAt     time.Time
}

// Succeeded сообщает, что платёж завершён успешно.
func (p Payment) Succeeded() bool {
	return PaymentStatus(strings.ToUpper(string(p.Status))) == PaymentStatusCompleted
}
