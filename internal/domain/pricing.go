package domain

import "github.com/shopspring/decimal"

// PricingBreakdown — производная от корзины, никогда не хранится отдельно.
type PricingBreakdown struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingAmount decimal.Decimal
	Total          decimal.Decimal
}
