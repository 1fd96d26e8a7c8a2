package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/reservation-engine/internal/apperr"
	"github.com/iliyamo/reservation-engine/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }

func TestStayThreeNights(t *testing.T) {
	c := New(decimal.Zero)

	f, err := c.Stay(dec("100.00"), 3, 1, Adjustments{}, "USD")
	require.NoError(t, err)
	assert.Equal(t, 3, f.Nights)
	assert.True(t, f.Subtotal.Equal(dec("300.00")), f.Subtotal.String())
	assert.True(t, f.Total.Equal(dec("300.00")))
}

func TestStayTotalsAreExact(t *testing.T) {
	c := New(decimal.Zero)
	adj := Adjustments{Taxes: ptr(dec("0.10")), Fees: dec("0.20"), Tip: dec("0.30"), Discount: dec("0.05")}

	for nights := 1; nights <= 30; nights++ {
		for qty := 1; qty <= 4; qty++ {
			f, err := c.Stay(dec("33.33"), nights, qty, adj, "EUR")
			require.NoError(t, err)
			want := dec("33.33").Mul(decimal.NewFromInt(int64(nights * qty)))
			assert.True(t, f.Subtotal.Equal(want))
			assert.True(t, f.Total.Equal(f.Subtotal.Add(f.Taxes).Add(f.Fees).Add(f.Tip).Sub(f.Discount)))
		}
	}
}

func TestStayRejectsZeroNightsAndQuantity(t *testing.T) {
	c := New(decimal.Zero)

	_, err := c.Stay(dec("100"), 0, 1, Adjustments{}, "USD")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = c.Stay(dec("100"), 2, 0, Adjustments{}, "USD")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestStayNightlyUsesCalendarPrices(t *testing.T) {
	c := New(decimal.Zero)

	f, err := c.StayNightly([]decimal.Decimal{dec("100"), dec("120"), dec("100")}, 2, Adjustments{}, "USD")
	require.NoError(t, err)
	assert.True(t, f.Subtotal.Equal(dec("640")))
	assert.True(t, f.Rate.Equal(dec("100")))
}

func TestOrderSumsFrozenLines(t *testing.T) {
	c := New(decimal.Zero)
	item := model.MenuItem{ID: "pizza", Name: "Pizza", Price: dec("12.50"), Currency: "USD"}
	line := NewLine(item, 3)

	// a later catalog price change must not affect the line
	item.Price = dec("99.00")

	f, err := c.Order([]model.OrderLine{line, NewLine(model.MenuItem{ID: "soda", Price: dec("2.25")}, 2)},
		Adjustments{Fees: dec("3.00"), Tip: dec("5.00"), Discount: dec("4.00")}, "USD")
	require.NoError(t, err)
	assert.True(t, line.LineTotal.Equal(dec("37.50")))
	assert.True(t, f.Subtotal.Equal(dec("42.00")))
	assert.True(t, f.Total.Equal(dec("46.00")))
}

func TestTaxRateApplied(t *testing.T) {
	c := New(dec("0.10"))

	f, err := c.Stay(dec("99.99"), 1, 1, Adjustments{}, "USD")
	require.NoError(t, err)
	assert.True(t, f.Taxes.Equal(dec("10.00")), f.Taxes.String())

	f, err = c.Stay(dec("99.99"), 1, 1, Adjustments{Taxes: ptr(dec("1.00"))}, "USD")
	require.NoError(t, err)
	assert.True(t, f.Taxes.Equal(dec("1.00")))
}

func TestExplicitZeroTaxesOverrideDefaultRate(t *testing.T) {
	c := New(dec("0.10"))

	f, err := c.Stay(dec("100.00"), 2, 1, Adjustments{Taxes: ptr(decimal.Zero)}, "USD")
	require.NoError(t, err)
	assert.True(t, f.Taxes.IsZero(), f.Taxes.String())
	assert.True(t, f.Total.Equal(dec("200.00")))

	f, err = c.Reprice(f, Adjustments{})
	require.NoError(t, err)
	assert.True(t, f.Taxes.Equal(dec("20.00")), f.Taxes.String())

	f, err = c.Reprice(f, Adjustments{Taxes: ptr(decimal.Zero), Fees: dec("5")})
	require.NoError(t, err)
	assert.True(t, f.Taxes.IsZero())
	assert.True(t, f.Total.Equal(dec("205.00")))
}

func TestNegativeFieldsReportedInFixedOrder(t *testing.T) {
	c := New(decimal.Zero)
	adj := Adjustments{Taxes: ptr(dec("-1")), Fees: dec("-1"), Tip: dec("-1"), Discount: dec("-1"), TaxRate: dec("-0.1")}

	for i := 0; i < 20; i++ {
		_, err := c.Stay(dec("10"), 1, 1, adj, "USD")
		var verr *apperr.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "taxes", verr.Field)
	}

	adj.Taxes = nil
	_, err := c.Stay(dec("10"), 1, 1, adj, "USD")
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "fees", verr.Field)
}

func TestRejectsNegativeTotalAndMissingCurrency(t *testing.T) {
	c := New(decimal.Zero)

	_, err := c.Stay(dec("10"), 1, 1, Adjustments{Discount: dec("11")}, "USD")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = c.Stay(dec("10"), 1, 1, Adjustments{}, "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = c.Stay(dec("10"), 1, 1, Adjustments{Tip: dec("-1")}, "USD")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestRepriceKeepsSubtotal(t *testing.T) {
	c := New(decimal.Zero)
	f, err := c.Stay(dec("50"), 2, 1, Adjustments{Fees: dec("5")}, "USD")
	require.NoError(t, err)

	f, err = c.Reprice(f, Adjustments{Tip: dec("10"), Discount: dec("20")})
	require.NoError(t, err)
	assert.True(t, f.Subtotal.Equal(dec("100")))
	assert.True(t, f.Fees.IsZero())
	assert.True(t, f.Total.Equal(dec("90")))
}
