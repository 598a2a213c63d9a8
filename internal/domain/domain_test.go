package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(id int64, price string, qty int) CartLine {
	return CartLine{ProductID: id, Name: fmt.Sprintf("product-%d", id), UnitPrice: decimal.RequireFromString(price), Quantity: qty}
}

func TestLinesTotal(t *testing.T) {
	lines := []CartLine{line(1, "50", 1), line(2, "60", 1), line(3, "0.10", 3)}

	assert.True(t, LinesTotal(lines).Equal(decimal.RequireFromString("110.30")))
	assert.Equal(t, 5, LinesCount(lines))
	assert.True(t, LinesTotal(nil).IsZero())
}

func TestValidateLines(t *testing.T) {
	tests := []struct {
		name  string
		lines []CartLine
		want  error
	}{
		{name: "ok", lines: []CartLine{line(1, "1", 1), line(2, "2", 2)}},
		{name: "zero qty", lines: []CartLine{line(1, "1", 0)}, want: ErrLineQtyInvalid},
		{name: "zero price", lines: []CartLine{line(1, "0", 1)}, want: ErrLinePriceInvalid},
		{name: "missing id", lines: []CartLine{line(0, "1", 1)}, want: ErrProductIDRequired},
		{name: "duplicate", lines: []CartLine{line(1, "1", 1), line(1, "1", 2)}, want: ErrDuplicateLine},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLines(tt.lines)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewCheckoutRequest_MapsLines(t *testing.T) {
	req := NewCheckoutRequest(
		[]CartLine{line(7, "12.5", 2)},
		CustomerInfo{Email: " a@b.c ", Name: "Ann", ShippingAddress: "Main st 1"},
		PaymentChoice{Method: PaymentMethodPayPal, Details: "a@pay.pal"},
	)

	require.Len(t, req.Items, 1)
	assert.Equal(t, int64(7), req.Items[0].ProductID)
	assert.Equal(t, "product-7", req.Items[0].ProductName)
	assert.Equal(t, 2, req.Items[0].Quantity)
	assert.True(t, req.Items[0].Price.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "a@b.c", req.CustomerEmail)
	assert.Equal(t, PaymentMethodPayPal, req.PaymentMethod)
}

func TestCheckoutError_IsAndHelpers(t *testing.T) {
	cause := &RemoteError{Service: "payments", StatusCode: 502, Message: "gateway down"}
	err := fmt.Errorf("submit: %w", &CheckoutError{Kind: KindPayment, OrderID: 42, Message: cause.Message, Err: cause})

	require.ErrorIs(t, err, ErrPayment)
	require.NotErrorIs(t, err, ErrOrderCreation)
	assert.Equal(t, "gateway down", UpstreamMessage(err))

	var checkoutErr *CheckoutError
	require.True(t, errors.As(err, &checkoutErr))
	assert.False(t, checkoutErr.Retryable())
	assert.False(t, checkoutErr.RequiresReconciliation())
	assert.True(t, checkoutErr.UnpaidOrderLeft())
	assert.Contains(t, checkoutErr.Error(), "order_id=42")

	confirm := &CheckoutError{Kind: KindConfirmation, OrderID: 1, PaymentID: 2}
	assert.True(t, confirm.RequiresReconciliation())
	assert.ErrorIs(t, confirm, ErrConfirmation)

	empty := &CheckoutError{Kind: KindEmptyCart}
	assert.True(t, empty.Retryable())
	assert.Equal(t, "checkout: cart is empty", empty.Error())
}

func TestIdentity_KeyAndContext(t *testing.T) {
	assert.Equal(t, AnonymousKey, Anonymous().Key())
	assert.True(t, Anonymous().IsAnonymous())
	assert.Equal(t, "user:17", Identity{UserID: "17", Email: "x@y.z"}.Key())
	assert.Equal(t, "email:x@y.z", Identity{Email: " X@Y.z "}.Key())
	assert.Equal(t, "anonymous:v1", AnonymousVisitor("v1").Key())
	assert.True(t, AnonymousVisitor("v1").IsAnonymous())
	assert.Equal(t, "user:3", Identity{VisitorID: "v1", UserID: "3"}.Key())

	ctx := WithIdentity(context.Background(), Identity{Email: "x@y.z", Token: "t"})
	got := IdentityFrom(ctx)
	assert.True(t, got.HasToken())
	assert.True(t, IdentityFrom(context.Background()).IsAnonymous())
}

func TestPayment_Succeeded(t *testing.T) {
	assert.True(t, Payment{Status: PaymentStatusCompleted}.Succeeded())
	assert.True(t, Payment{Status: "completed"}.Succeeded())
	assert.False(t, Payment{Status: PaymentStatusPending}.Succeeded())
	assert.False(t, Payment{Status: PaymentStatusFailed}.Succeeded())
}

func TestCheckoutEvent_NeedsReconciliation(t *testing.T) {
	assert.True(t, CheckoutEvent{Outcome: CheckoutOutcomeFailed, Kind: KindConfirmation}.NeedsReconciliation())
	assert.True(t, CheckoutEvent{Outcome: CheckoutOutcomeFailed, Kind: KindPayment}.NeedsReconciliation())
	assert.False(t, CheckoutEvent{Outcome: CheckoutOutcomeFailed, Kind: KindOrderCreation}.NeedsReconciliation())
	assert.False(t, CheckoutEvent{Outcome: CheckoutOutcomeSucceeded}.NeedsReconciliation())
}
