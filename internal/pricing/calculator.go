// Package pricing derives booking financials.  Every function is pure:
// the lifecycle manager calls it before persisting, so totals never
// depend on how or when a booking is saved.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/reservation-engine/internal/apperr"
	"github.com/iliyamo/reservation-engine/internal/model"
)

// Adjustments are the caller-supplied constituents on top of the
// subtotal.  A nil Taxes derives taxes from TaxRate, or from the default
// rate; an explicit zero means no taxes.
type Adjustments struct {
	Taxes    *decimal.Decimal
	Fees     decimal.Decimal
	Tip      decimal.Decimal
	Discount decimal.Decimal
	TaxRate  decimal.Decimal
}

// Calculator computes stay and order financials.  DefaultTaxRate is used
// when the adjustments carry neither taxes nor a rate of their own.
type Calculator struct {
	DefaultTaxRate decimal.Decimal
}

// New returns a Calculator with the given default tax rate (0.1 = 10%).
func New(defaultTaxRate decimal.Decimal) *Calculator {
	return &Calculator{DefaultTaxRate: defaultTaxRate}
}

// Stay prices a uniform-rate stay: subtotal = rate × nights × quantity.
func (c *Calculator) Stay(rate decimal.Decimal, nights, quantity int, adj Adjustments, currency string) (model.Financials, error) {
	if nights < 1 {
		return model.Financials{}, apperr.Invalid("nights", "must be at least 1")
	}
	rates := make([]decimal.Decimal, nights)
	for i := range rates {
		rates[i] = rate
	}
	return c.StayNightly(rates, quantity, adj, currency)
}

// StayNightly prices a stay whose nights may carry different calendar
// prices: subtotal = Σ nightly rate × quantity.  Rate on the result is
// the first night's rate, which is the stay rate when pricing is uniform.
func (c *Calculator) StayNightly(rates []decimal.Decimal, quantity int, adj Adjustments, currency string) (model.Financials, error) {
	if len(rates) < 1 {
		return model.Financials{}, apperr.Invalid("nights", "must be at least 1")
	}
	if quantity < 1 {
		return model.Financials{}, apperr.Invalid("quantity", "must be at least 1")
	}
	sum := decimal.Zero
	for _, r := range rates {
		if r.IsNegative() {
			return model.Financials{}, apperr.Invalid("rate", "must not be negative")
		}
		sum = sum.Add(r)
	}
	f := model.Financials{
		Rate:     rates[0],
		Nights:   len(rates),
		Subtotal: sum.Mul(decimal.NewFromInt(int64(quantity))),
		Currency: currency,
	}
	return c.apply(f, adj)
}

// Order prices a dining order: subtotal = Σ line totals.  Lines must
// already carry their snapshotted unit price and line total.
func (c *Calculator) Order(lines []model.OrderLine, adj Adjustments, currency string) (model.Financials, error) {
	sum := decimal.Zero
	for _, l := range lines {
		if l.Quantity < 1 {
			return model.Financials{}, apperr.Invalid("lines.quantity", "must be at least 1")
		}
		sum = sum.Add(l.LineTotal)
	}
	return c.apply(model.Financials{Subtotal: sum, Currency: currency}, adj)
}

// NewLine snapshots a catalog price into an order line.
func NewLine(item model.MenuItem, quantity int) model.OrderLine {
	return model.OrderLine{
		ItemID:    item.ID,
		Name:      item.Name,
		Quantity:  quantity,
		UnitPrice: item.Price,
		LineTotal: item.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// Reprice replaces the adjustments of existing financials and recomputes
// the total.  The subtotal is kept.
func (c *Calculator) Reprice(f model.Financials, adj Adjustments) (model.Financials, error) {
	f.Taxes, f.Fees, f.Tip, f.Discount = decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	return c.apply(f, adj)
}

// Total is the single definition of the booking total.
func Total(subtotal, taxes, fees, tip, discount decimal.Decimal) decimal.Decimal {
	return subtotal.Add(taxes).Add(fees).Add(tip).Sub(discount)
}

func (c *Calculator) apply(f model.Financials, adj Adjustments) (model.Financials, error) {
	if f.Currency == "" {
		return model.Financials{}, apperr.Invalid("currency", "is required")
	}
	if err := adj.validate(); err != nil {
		return model.Financials{}, err
	}
	taxes := decimal.Zero
	if adj.Taxes != nil {
		taxes = *adj.Taxes
	} else {
		rate := adj.TaxRate
		if rate.IsZero() {
			rate = c.DefaultTaxRate
		}
		if rate.IsPositive() {
			taxes = f.Subtotal.Mul(rate).Round(2)
		}
	}
	f.Taxes = taxes
	f.Fees = adj.Fees
	f.Tip = adj.Tip
	f.Discount = adj.Discount
	f.Total = Total(f.Subtotal, f.Taxes, f.Fees, f.Tip, f.Discount)
	if f.Total.IsNegative() {
		return model.Financials{}, apperr.Invalid("discount", "exceeds the booking amount")
	}
	return f, nil
}

// validate checks fields in a fixed order so the reported field is
// stable when several are wrong.
func (a Adjustments) validate() error {
	taxes := decimal.Zero
	if a.Taxes != nil {
		taxes = *a.Taxes
	}
	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"taxes", taxes},
		{"fees", a.Fees},
		{"tip", a.Tip},
		{"discount", a.Discount},
		{"tax_rate", a.TaxRate},
	} {
		if f.v.IsNegative() {
			return apperr.Invalid(f.name, "must not be negative")
		}
	}
	return nil
}
