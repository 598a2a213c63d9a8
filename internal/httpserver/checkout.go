package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
)

type customerDTO struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	ShippingAddress string `json:"shippingAddress"`
}

type paymentChoiceDTO struct {
	Method  string `json:"method"`
	Details string `json:"details"`
}

type checkoutRequest struct {
	Customer customerDTO      `json:"customer"`
	Payment  paymentChoiceDTO `json:"payment"`
}

type checkoutResponse struct {
	SessionID     string                   `json:"sessionId"`
	OrderID       int64                    `json:"orderId"`
	OrderStatus   string                   `json:"orderStatus"`
	PaymentID     int64                    `json:"paymentId"`
	PaymentStatus string                   `json:"paymentStatus"`
	TransactionID string                   `json:"transactionId,omitempty"`
	Pricing       pricing.DisplayBreakdown `json:"pricing"`
}

// checkoutErrorResponse несёт вид ошибки, чтобы UI выбрал сообщение и не
// предлагал слепой повтор там, где заказ уже создан.
type checkoutErrorResponse struct {
	Error                  string `json:"error"`
	Message                string `json:"message,omitempty"`
	OrderID                int64  `json:"orderId,omitempty"`
	PaymentID              int64  `json:"paymentId,omitempty"`
	Retryable              bool   `json:"retryable"`
	RequiresReconciliation bool   `json:"requiresReconciliation"`
}

type sessionStatusResponse struct {
	SessionID string `json:"sessionId"`
	Phase     string `json:"phase"`
	OrderID   int64  `json:"orderId,omitempty"`
}

func (s *Server) submitCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	customer := domain.CustomerInfo{
		Email:           req.Customer.Email,
		Name:            req.Customer.Name,
		ShippingAddress: req.Customer.ShippingAddress,
	}
	if err := customer.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_CUSTOMER", err.Error())
		return
	}
	choice := domain.PaymentChoice{
		Method:  domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.Payment.Method))),
		Details: req.Payment.Details,
	}
	if err := choice.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PAYMENT_METHOD", err.Error())
		return
	}

	identity := domain.IdentityFrom(r.Context())
	session, err := s.checkout.Begin(identity)
	if err != nil {
		s.respondCheckoutError(w, err)
		return
	}

	// Оформляется и очищается корзина именно этой identity, что бы ни делали
	// параллельные запросы того же посетителя.
	store, release := s.carts.Hold(r.Context(), identity)
	defer release()

	result, err := session.Submit(r.Context(), store, customer, choice)
	if err != nil {
		s.respondCheckoutError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, checkoutResponse{
		SessionID:     result.SessionID,
		OrderID:       result.Order.ID,
		OrderStatus:   string(result.Order.Status),
		PaymentID:     result.Payment.ID,
		PaymentStatus: string(result.Payment.Status),
		TransactionID: result.Payment.TransactionID,
		Pricing:       pricing.ToDisplay(result.Breakdown),
	})
}

func (s *Server) respondCheckoutError(w http.ResponseWriter, err error) {
	var cerr *domain.CheckoutError
	if errors.As(err, &cerr) {
		respondJSON(w, checkoutStatusCode(cerr.Kind), checkoutErrorResponse{
			Error:                  string(cerr.Kind),
			Message:                checkoutMessage(cerr),
			OrderID:                cerr.OrderID,
			PaymentID:              cerr.PaymentID,
			Retryable:              cerr.Retryable(),
			RequiresReconciliation: cerr.RequiresReconciliation(),
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrCheckoutInProgress):
		respondError(w, http.StatusConflict, "CHECKOUT_IN_PROGRESS", "another checkout is already running")
	case errors.Is(err, domain.ErrCheckoutCanceled):
		respondError(w, http.StatusConflict, "CHECKOUT_CANCELED", "checkout was canceled")
	case errors.Is(err, domain.ErrSessionClosed):
		respondError(w, http.StatusConflict, "CHECKOUT_CLOSED", "checkout session is closed")
	default:
		s.logger.WithError(err).Error("unexpected checkout error")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "unexpected checkout error")
	}
}

func checkoutStatusCode(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindEmptyCart:
		return http.StatusUnprocessableEntity
	case domain.KindOrderCreation:
		return http.StatusBadGateway
	case domain.KindPayment:
		return http.StatusPaymentRequired
	case domain.KindConfirmation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// checkoutMessage предпочитает сообщение upstream-сервиса.
func checkoutMessage(cerr *domain.CheckoutError) string {
	if cerr.Message != "" {
		return cerr.Message
	}
	switch cerr.Kind {
	case domain.KindEmptyCart:
		return "your cart is empty"
	case domain.KindOrderCreation:
		return "the order could not be created, please try again"
	case domain.KindPayment:
		return "the payment did not go through; the order was created but is unpaid"
	case domain.KindConfirmation:
		return "the payment was taken but the order was not confirmed; support will reconcile it"
	default:
		return ""
	}
}

func (s *Server) checkoutStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := s.checkout.Active(domain.IdentityFrom(r.Context()))
	if !ok {
		respondError(w, http.StatusNotFound, "NO_ACTIVE_CHECKOUT", "no checkout in progress")
		return
	}
	respondJSON(w, http.StatusOK, sessionStatusResponse{
		SessionID: session.ID(),
		Phase:     string(session.Phase()),
		OrderID:   session.OrderID(),
	})
}

func (s *Server) cancelCheckout(w http.ResponseWriter, r *http.Request) {
	session, ok := s.checkout.Active(domain.IdentityFrom(r.Context()))
	if !ok {
		respondError(w, http.StatusNotFound, "NO_ACTIVE_CHECKOUT", "no checkout in progress")
		return
	}
	if err := session.Cancel(); err != nil {
		if errors.Is(err, checkout.ErrCancelTooLate) {
			respondError(w, http.StatusConflict, "CANCEL_TOO_LATE", err.Error())
			return
		}
		respondError(w, http.StatusConflict, "CHECKOUT_CLOSED", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
