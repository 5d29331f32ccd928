package orderbook

import (
	"github.com/shopspring/decimal"

	"github.com/Hritul2/exchange-app/internal/schema"
)

// Order is one resting or incoming limit order. Owned by the book that
// holds it; removed when fully filled or canceled.
type Order struct {
	OrderID  string          `json:"orderId"`
	UserID   string          `json:"userId"`
	Side     schema.Side     `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Filled   decimal.Decimal `json:"filled"`
}

// Remaining is the unfilled quantity.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.Filled)
}

// Fill is one matched unit produced during matching, at the maker's price.
// Not retained by the book beyond the call that produced it, except in the
// rolling trade window.
type Fill struct {
	TradeID      int64
	Price        decimal.Decimal
	Qty          decimal.Decimal
	MakerOrderID string
	MakerUserID  string
}
