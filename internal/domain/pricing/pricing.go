// Package pricing computes order totals in integer currency units.
package pricing

import (
	"math"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrAmountOutOfRange is returned when line amounts do not fit the integer
// currency range or a line has a negative quantity or price.
var ErrAmountOutOfRange = errors.New("order amount out of range")

// maxAmount leaves headroom for shipping and tax on top of the items price.
var maxAmount = decimal.NewFromInt(math.MaxInt64 / 2)

// Config holds the shipping and tax parameters of the calculator.
type Config struct {
	// FreeShippingAbove is the items price that must be exceeded for
	// shipping to be free.
	FreeShippingAbove int64
	ShippingFee       int64
	TaxRate           decimal.Decimal
}

// DefaultConfig returns the store's standard pricing parameters.
func DefaultConfig() Config {
	return Config{
		FreeShippingAbove: 999,
		ShippingFee:       60,
		TaxRate:           decimal.RequireFromString("0.05"),
	}
}

// Line is a single priced cart position.
type Line struct {
	UnitPrice int64
	Quantity  int
}

// Breakdown is the result of pricing a set of lines.
type Breakdown struct {
	ItemsPrice    int64
	ShippingPrice int64
	TaxPrice      int64
	DiscountPrice int64
	TotalPrice    int64
}

// Calculator is a pure function of its Config; it is safe for concurrent use.
type Calculator struct {
	cfg Config
}

// NewCalculator returns a Calculator using cfg.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// ItemsPrice sums unit price times quantity. The sum is carried in decimal
// so an oversized order is reported instead of wrapping around.
func ItemsPrice(lines []Line) (int64, error) {
	sum := decimal.Zero
	for _, l := range lines {
		if l.UnitPrice < 0 || l.Quantity < 0 {
			return 0, ErrAmountOutOfRange
		}
		sum = sum.Add(decimal.NewFromInt(l.UnitPrice).Mul(decimal.NewFromInt(int64(l.Quantity))))
		if sum.GreaterThan(maxAmount) {
			return 0, ErrAmountOutOfRange
		}
	}
	return sum.IntPart(), nil
}

// Compute prices lines with an optional coupon percent (0 for none).
// Tax and discount are rounded half up to whole units and the total never
// goes below zero.
func (c *Calculator) Compute(lines []Line, discountPercent int) (Breakdown, error) {
	items, err := ItemsPrice(lines)
	if err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{
		ItemsPrice:    items,
		ShippingPrice: c.cfg.ShippingFee,
		TaxPrice:      roundUnits(decimal.NewFromInt(items).Mul(c.cfg.TaxRate)),
	}
	if items > c.cfg.FreeShippingAbove {
		b.ShippingPrice = 0
	}
	if discountPercent > 0 {
		b.DiscountPrice = roundUnits(
			decimal.NewFromInt(items).Mul(decimal.NewFromInt(int64(discountPercent))).Div(decimal.NewFromInt(100)),
		)
	}

	b.TotalPrice = b.ItemsPrice + b.ShippingPrice + b.TaxPrice - b.DiscountPrice
	if b.TotalPrice < 0 {
		b.TotalPrice = 0
	}
	return b, nil
}

// roundUnits rounds half away from zero, which is half up for the
// non-negative amounts priced here.
func roundUnits(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
