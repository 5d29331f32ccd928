package orderbook

import (
	"time"

	"github.com/shopspring/decimal"
)

// tradeWindow keeps the fills of the last span for market statistics. It is
// a statistics cache only and is never persisted.
type tradeWindow struct {
	span    time.Duration
	entries []windowEntry
	now     func() time.Time
}

type windowEntry struct {
	at    time.Time
	price decimal.Decimal
	qty   decimal.Decimal
}

func newTradeWindow(span time.Duration) *tradeWindow {
	return &tradeWindow{span: span, now: time.Now}
}

func (w *tradeWindow) record(price, qty decimal.Decimal) {
	w.prune()
	w.entries = append(w.entries, windowEntry{at: w.now(), price: price, qty: qty})
}

func (w *tradeWindow) prune() {
	cutoff := w.now().Add(-w.span)
	i := 0
	for i < len(w.entries) && w.entries[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.entries = w.entries[i:]
	}
}

func (w *tradeWindow) volume() decimal.Decimal {
	w.prune()
	total := decimal.Zero
	for _, e := range w.entries {
		total = total.Add(e.qty)
	}
	return total
}

// priceChange is the last price minus the oldest in-window price, zero when
// fewer than two trades are retained.
func (w *tradeWindow) priceChange() decimal.Decimal {
	w.prune()
	if len(w.entries) < 2 {
		return decimal.Zero
	}
	return w.entries[len(w.entries)-1].price.Sub(w.entries[0].price)
}

// Stats is the per-market statistics summary.
type Stats struct {
	LastPrice      decimal.Decimal
	BestBid        string
	BestAsk        string
	Volume24h      decimal.Decimal
	PriceChange24h decimal.Decimal
}

// Stats summarises the book: last price, best levels and the rolling
// 24h volume and price change.
func (b *Book) Stats() Stats {
	s := Stats{
		LastPrice:      b.currentPrice,
		Volume24h:      b.window.volume(),
		PriceChange24h: b.window.priceChange(),
	}
	if len(b.bids) > 0 {
		s.BestBid = b.bids[0].price.String()
	}
	if len(b.asks) > 0 {
		s.BestAsk = b.asks[0].price.String()
	}
	return s
}
