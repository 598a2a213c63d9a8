package domain

import "github.com/shopspring/decimal"

// CartLine — одна позиция корзины.
type CartLine struct {
	// ProductID уникален в пределах корзины.
	ProductID int64 `json:"productId"`
	// Name фиксируется в момент добавления и уходит в заказ как productName.
	Name string `json:"name"`
	// UnitPrice — цена за единицу, строго больше нуля.
	UnitPrice decimal.Decimal `json:"unitPrice"`
	// Quantity не бывает меньше 1: нулевое количество означает удаление позиции.
	Quantity int `json:"quantity"`
}

// Amount возвращает стоимость позиции: unitPrice × quantity.
func (l CartLine) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Validate проверяет инварианты позиции.
func (l CartLine) Validate() error {
	switch {
	case l.ProductID == 0:
		return ErrProductIDRequired
	case l.Quantity < 1:
		return ErrLineQtyInvalid
	case !l.UnitPrice.IsPositive():
		return ErrLinePriceInvalid
	}
	return nil
}

// LinesTotal считает сумму корзины без промежуточных округлений.
func LinesTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount())
	}
	return total
}

// LinesCount возвращает общее количество единиц товара.
func LinesCount(lines []CartLine) int {
	var n int
	for _, line := range lines {
		n += line.Quantity
	}
	return n
}

// ValidateLines проверяет позиции и уникальность productId.
func ValidateLines(lines []CartLine) error {
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if err := line.Validate(); err != nil {
			return err
		}
		if _, dup := seen[line.ProductID]; dup {
			return ErrDuplicateLine
		}
		seen[line.ProductID] = struct{}{}
	}
	return nil
}

// CloneLines возвращает независимую копию среза позиций.
func CloneLines(lines []CartLine) []CartLine {
	if lines == nil {
		return []CartLine{}
	}
	out := make([]CartLine, len(lines))
	copy(out, lines)
	return out
}
