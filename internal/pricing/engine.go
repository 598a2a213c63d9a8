package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// displayPlaces — точность отображения денежных сумм.
const displayPlaces = 2

// ErrInvalidConfig возвращается при отрицательных параметрах расчёта.
var ErrInvalidConfig = errors.New("pricing config values must be non-negative")

// Config задаёт параметры расчёта.
type Config struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
}

// DefaultConfig: налог 10%, доставка 10, бесплатно при сумме строго больше 100.
func DefaultConfig() Config {
	return Config{
		TaxRate:               decimal.RequireFromString("0.10"),
		FreeShippingThreshold: decimal.NewFromInt(100),
		ShippingFee:           decimal.NewFromInt(10),
	}
}

// Engine считает стоимость корзины. Состояния между вызовами нет.
type Engine struct {
	cfg Config
}

// NewEngine проверяет конфигурацию и создаёт движок.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.TaxRate.IsNegative() || cfg.FreeShippingThreshold.IsNegative() || cfg.ShippingFee.IsNegative() {
		return nil, ErrInvalidConfig
	}
	return &Engine{cfg: cfg}, nil
}

// MustNewEngine паникует на некорректной конфигурации.
func MustNewEngine(cfg Config) *Engine {
	e, err := NewEngine(cfg)
	if err != nil {
		panic(err)
	}
	return e
}

// Config возвращает параметры движка.
func (e *Engine) Config() Config {
	return e.cfg
}

// Tax = amount × rate.
func (e *Engine) Tax(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(e.cfg.TaxRate)
}

// Shipping бесплатна, если сумма строго больше порога.
func (e *Engine) Shipping(amount decimal.Decimal) decimal.Decimal {
	if amount.GreaterThan(e.cfg.FreeShippingThreshold) {
		return decimal.Zero
	}
	return e.cfg.ShippingFee
}

// GrandTotal = amount + tax + shipping.
func (e *Engine) GrandTotal(amount decimal.Decimal) decimal.Decimal {
	return amount.Add(e.Tax(amount)).Add(e.Shipping(amount))
}

// Breakdown считает полную раскладку по сумме корзины.
func (e *Engine) Breakdown(amount decimal.Decimal) domain.PricingBreakdown {
	return domain.PricingBreakdown{
		Subtotal:       amount,
		TaxAmount:      e.Tax(amount),
		ShippingAmount: e.Shipping(amount),
		Total:          e.GrandTotal(amount),
	}
}

// ForLines считает Breakdown по позициям корзины.
func (e *Engine) ForLines(lines []domain.CartLine) domain.PricingBreakdown {
	return e.Breakdown(domain.LinesTotal(lines))
}

// Round округляет сумму до копеек только для отображения и передачи наружу.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(displayPlaces)
}

// Display форматирует сумму с двумя знаками после запятой.
func Display(amount decimal.Decimal) string {
	return amount.StringFixed(displayPlaces)
}

// DisplayBreakdown — раскладка в виде строк для UI.
type DisplayBreakdown struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Shipping string `json:"shipping"`
	Total    string `json:"total"`
}

// ToDisplay переводит раскладку в отображаемые строки.
func ToDisplay(b domain.PricingBreakdown) DisplayBreakdown {
	return DisplayBreakdown{
		Subtotal: Display(b.Subtotal),
		Tax:      Display(b.TaxAmount),
		Shipping: Display(b.ShippingAmount),
		Total:    Display(b.Total),
	}
}
