package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountsRenderWithTwoDecimals(t *testing.T) {
	b := Booking{
		Financials: Financials{
			Rate:     decimal.RequireFromString("100"),
			Nights:   2,
			Subtotal: decimal.RequireFromString("200"),
			Taxes:    decimal.RequireFromString("12.5"),
			Total:    decimal.RequireFromString("212.5"),
			Currency: "USD",
		},
		Lines: []OrderLine{{ItemID: "pizza", Quantity: 2, UnitPrice: decimal.RequireFromString("6.25"), LineTotal: decimal.RequireFromString("12.5")}},
	}
	raw, err := json.Marshal(b)
	require.NoError(t, err)

	var out struct {
		Financials map[string]any   `json:"financials"`
		Lines      []map[string]any `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "200.00", out.Financials["subtotal"])
	assert.Equal(t, "212.50", out.Financials["total"])
	assert.Equal(t, "0.00", out.Financials["discount"])
	assert.Equal(t, "USD", out.Financials["currency"])
	assert.EqualValues(t, 2, out.Financials["nights"])
	assert.Equal(t, "12.50", out.Lines[0]["line_total"])
	assert.Equal(t, "pizza", out.Lines[0]["item_id"])

	var back Financials
	require.NoError(t, json.Unmarshal([]byte(`{"total":"212.50","currency":"USD"}`), &back))
	assert.True(t, back.Total.Equal(b.Financials.Total))

	slot, err := json.Marshal(SlotAvailability{Unit: SlotUnit{Date: "2024-06-01"}, Price: decimal.RequireFromString("99.9")})
	require.NoError(t, err)
	assert.Contains(t, string(slot), `"price":"99.90"`)
}
