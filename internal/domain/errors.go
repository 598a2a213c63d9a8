package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Ошибки инвариантов позиции корзины.
	ErrProductIDRequired = errors.New("product id is required")
	ErrLineQtyInvalid    = errors.New("cart line quantity must be at least 1")
	ErrLinePriceInvalid  = errors.New("cart line unit price must be greater than zero")
	ErrDuplicateLine     = errors.New("cart contains duplicate product id")

	// Ошибки данных формы оформления.
	ErrCustomerEmailRequired   = errors.New("customer email is required")
	ErrCustomerNameRequired    = errors.New("customer name is required")
	ErrShippingAddressRequired = errors.New("shipping address is required")
	ErrPaymentMethodInvalid    = errors.New("payment method is not supported")

	// ErrCartNotFound возвращается хранилищем, если под ключом ничего нет.
	ErrCartNotFound = errors.New("cart not found")

	// ErrEmptyCart — оформление пустой корзины; удалённые вызовы не выполняются.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrOrderCreation — сервис заказов не создал заказ; повтор безопасен.
	ErrOrderCreation = errors.New("order creation failed")
	// ErrPayment — заказ создан, но не оплачен; повторная отправка создаст дубликат заказа.
	ErrPayment = errors.New("payment failed")
	// ErrConfirmation — оплата прошла, но заказ не отмечен оплаченным; нужна ручная сверка.
	ErrConfirmation = errors.New("order confirmation failed")
	// ErrLoadFailed — не удалось загрузить историю заказов; лечится повторным запросом.
	ErrLoadFailed = errors.New("order history load failed")

	// Для identity уже выполняется оформление.
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrSessionClosed      = errors.New("checkout session is closed")
	// Попытка отменена до создания заказа.
	ErrCheckoutCanceled = errors.New("checkout canceled")
)

// ErrorKind — вид ошибки оформления, по нему UI выбирает сообщение.
type ErrorKind string

const (
	KindEmptyCart     ErrorKind = "EMPTY_CART"
	KindOrderCreation ErrorKind = "ORDER_CREATION"
	KindPayment       ErrorKind = "PAYMENT"
	KindConfirmation  ErrorKind = "CONFIRMATION"
)

// Sentinel возвращает sentinel-ошибку, соответствующую виду.
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindEmptyCart:
		return ErrEmptyCart
	case KindOrderCreation:
		return ErrOrderCreation
	case KindPayment:
		return ErrPayment
	case KindConfirmation:
		return ErrConfirmation
	default:
		return nil
	}
}

// CheckoutError описывает, на каком шаге и с чем сорвалась попытка оформления.
type CheckoutError struct {
	Kind ErrorKind
	// OrderID заполнен, если заказ успел создаться удалённо.
	OrderID int64
	// PaymentID заполнен, если платёж прошёл.
	PaymentID int64
	// Message upstream-сервиса, если оно было.
	Message string
	Err     error
}

func (e *CheckoutError) Error() string {
	var b strings.Builder
	b.WriteString("checkout: ")
	if s := e.Kind.Sentinel(); s != nil {
		b.WriteString(s.Error())
	} else {
		b.WriteString(string(e.Kind))
	}
	if e.OrderID != 0 {
		fmt.Fprintf(&b, " (order_id=%d)", e.OrderID)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap позволяет errors.Is сопоставлять и вид, и исходную причину.
func (e *CheckoutError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.Sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Retryable сообщает, можно ли просто повторить оформление той же корзины.
func (e *CheckoutError) Retryable() bool {
	return e.Kind == KindEmptyCart || e.Kind == KindOrderCreation
}

// RequiresReconciliation сообщает, что деньги списаны, а заказ не отмечен оплаченным.
func (e *CheckoutError) RequiresReconciliation() bool {
	return e.Kind == KindConfirmation
}

// UnpaidOrderLeft сообщает, что удалённо остался неоплаченный заказ.
func (e *CheckoutError) UnpaidOrderLeft() bool {
	return e.Kind == KindPayment && e.OrderID != 0
}

// RemoteError представляет ответ удалённого сервиса с кодом ошибки.
type RemoteError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Service, e.StatusCode)
}

// UpstreamMessage достаёт сообщение удалённого сервиса из цепочки ошибок.
func UpstreamMessage(err error) string {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Message
	}
	return ""
}
