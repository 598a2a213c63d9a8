package domain

import "github.com/shopspring/decimal"

// Product — карточка товара из каталога. Ядро его только читает.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category"`
	StockQuantity int             `json:"stockQuantity"`
	ImageURL      string          `json:"imageUrl,omitempty"`
	Available     bool            `json:"available"`
}

// Line строит позицию корзины из товара.
func (p Product) Line(qty int) CartLine {
	return CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  qty,
	}
}
