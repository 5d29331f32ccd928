package orderbook

import (
	"github.com/shopspring/decimal"

	"github.com/Hritul2/exchange-app/internal/schema"
)

// BookSnapshot is the persisted form of one book: raw orders only. Depth is
// a derived cache and is re-built on restore, never trusted from disk.
type BookSnapshot struct {
	BaseAsset    string          `json:"baseAsset"`
	QuoteAsset   string          `json:"quoteAsset"`
	Bids         []Order         `json:"bids"`
	Asks         []Order         `json:"asks"`
	LastTradeID  int64           `json:"lastTradeId"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
}

// Snapshot captures the book's raw orders in price-time order.
func (b *Book) Snapshot() BookSnapshot {
	snap := BookSnapshot{
		BaseAsset:    b.baseAsset,
		QuoteAsset:   b.quoteAsset,
		Bids:         make([]Order, 0),
		Asks:         make([]Order, 0),
		LastTradeID:  b.lastTradeID,
		CurrentPrice: b.currentPrice,
	}
	for _, lvl := range b.bids {
		for _, o := range lvl.orders {
			snap.Bids = append(snap.Bids, *o)
		}
	}
	for _, lvl := range b.asks {
		for _, o := range lvl.orders {
			snap.Asks = append(snap.Asks, *o)
		}
	}
	return snap
}

// Restore rebuilds a book from a snapshot. Orders are re-rested in slice
// order, which preserves FIFO within each price level, and the depth maps
// are re-derived from the orders' remaining quantities.
func Restore(snap BookSnapshot) *Book {
	b := New(snap.BaseAsset, snap.QuoteAsset)
	for i := range snap.Bids {
		o := snap.Bids[i]
		o.Side = schema.SideBuy
		if o.Remaining().IsPositive() {
			b.rest(&o)
		}
	}
	for i := range snap.Asks {
		o := snap.Asks[i]
		o.Side = schema.SideSell
		if o.Remaining().IsPositive() {
			b.rest(&o)
		}
	}
	b.lastTradeID = snap.LastTradeID
	b.currentPrice = snap.CurrentPrice
	return b
}
