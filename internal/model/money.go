package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Amounts leave the engine as strings with two decimals ("200.00").
// Decoding is left to decimal, which accepts any precision.

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func (f Financials) MarshalJSON() ([]byte, error) {
	type plain Financials
	return json.Marshal(struct {
		plain
		Rate     string `json:"rate"`
		Subtotal string `json:"subtotal"`
		Taxes    string `json:"taxes"`
		Fees     string `json:"fees"`
		Discount string `json:"discount"`
		Tip      string `json:"tip"`
		Total    string `json:"total"`
	}{plain(f), money(f.Rate), money(f.Subtotal), money(f.Taxes), money(f.Fees), money(f.Discount), money(f.Tip), money(f.Total)})
}

func (l OrderLine) MarshalJSON() ([]byte, error) {
	type plain OrderLine
	return json.Marshal(struct {
		plain
		UnitPrice string `json:"unit_price"`
		LineTotal string `json:"line_total"`
	}{plain(l), money(l.UnitPrice), money(l.LineTotal)})
}

func (s SlotAvailability) MarshalJSON() ([]byte, error) {
	type plain SlotAvailability
	return json.Marshal(struct {
		plain
		Price string `json:"price"`
	}{plain(s), money(s.Price)})
}

func (r FreeSubResource) MarshalJSON() ([]byte, error) {
	type plain FreeSubResource
	return json.Marshal(struct {
		plain
		Price string `json:"price"`
	}{plain(r), money(r.Price)})
}
