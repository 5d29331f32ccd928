// Package orderbook maintains bid/ask state for one market and performs
// price-time-priority matching. Money never moves here; the book only
// reports quantities and prices back to the dispatcher.
package orderbook

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/Hritul2/exchange-app/internal/schema"
)

var ErrOrderNotFound = errors.New("order not found")

// level is one price level: a FIFO queue of resting orders.
type level struct {
	price  decimal.Decimal
	orders []*Order
}

// Book is the order book for one market. Not safe for concurrent use; the
// engine's single writer is the only caller.
type Book struct {
	baseAsset  string
	quoteAsset string

	bids []*level // sorted by price descending
	asks []*level // sorted by price ascending

	// Depth aggregates remaining quantity per price level, maintained
	// incrementally and keyed by the canonical decimal string so that no
	// level can fragment on representation differences.
	bidsDepth map[string]decimal.Decimal
	asksDepth map[string]decimal.Decimal

	lastTradeID  int64
	currentPrice decimal.Decimal

	window *tradeWindow
}

func New(baseAsset, quoteAsset string) *Book {
	return &Book{
		baseAsset:    baseAsset,
		quoteAsset:   quoteAsset,
		bidsDepth:    make(map[string]decimal.Decimal),
		asksDepth:    make(map[string]decimal.Decimal),
		currentPrice: decimal.Zero,
		window:       newTradeWindow(24 * time.Hour),
	}
}

// Ticker is the market identity, BASE_QUOTE.
func (b *Book) Ticker() string {
	return b.baseAsset + "_" + b.quoteAsset
}

func (b *Book) BaseAsset() string  { return b.baseAsset }
func (b *Book) QuoteAsset() string { return b.quoteAsset }

// AddOrder matches the incoming order against the opposite side, best price
// first and FIFO within a level, then rests any remainder. It returns the
// executed quantity and one fill per matched maker order.
func (b *Book) AddOrder(o *Order) (decimal.Decimal, []Fill) {
	var fills []Fill
	if o.Side == schema.SideBuy {
		fills = b.match(o, &b.asks, b.asksDepth, func(levelPrice decimal.Decimal) bool {
			return levelPrice.LessThanOrEqual(o.Price)
		})
	} else {
		fills = b.match(o, &b.bids, b.bidsDepth, func(levelPrice decimal.Decimal) bool {
			return levelPrice.GreaterThanOrEqual(o.Price)
		})
	}

	if o.Remaining().IsPositive() {
		b.rest(o)
	}
	return o.Filled, fills
}

func (b *Book) match(o *Order, opposite *[]*level, depth map[string]decimal.Decimal, crosses func(decimal.Decimal) bool) []Fill {
	var fills []Fill
	for len(*opposite) > 0 && o.Remaining().IsPositive() {
		lvl := (*opposite)[0]
		if !crosses(lvl.price) {
			break
		}

		for len(lvl.orders) > 0 && o.Remaining().IsPositive() {
			maker := lvl.orders[0]
			qty := decimal.Min(o.Remaining(), maker.Remaining())

			maker.Filled = maker.Filled.Add(qty)
			o.Filled = o.Filled.Add(qty)
			b.lastTradeID++
			b.currentPrice = lvl.price
			subtractDepth(depth, lvl.price, qty)
			b.window.record(lvl.price, qty)

			fills = append(fills, Fill{
				TradeID:      b.lastTradeID,
				Price:        lvl.price,
				Qty:          qty,
				MakerOrderID: maker.OrderID,
				MakerUserID:  maker.UserID,
			})

			if !maker.Remaining().IsPositive() {
				lvl.orders = lvl.orders[1:]
			}
		}

		if len(lvl.orders) == 0 {
			*opposite = (*opposite)[1:]
		}
	}
	return fills
}

// rest appends the order's remainder to its own side, creating the price
// level if needed, and raises the depth by the unfilled quantity.
func (b *Book) rest(o *Order) {
	side, depth := &b.bids, b.bidsDepth
	better := func(a, p decimal.Decimal) bool { return a.GreaterThan(p) }
	if o.Side == schema.SideSell {
		side, depth = &b.asks, b.asksDepth
		better = func(a, p decimal.Decimal) bool { return a.LessThan(p) }
	}

	i := sort.Search(len(*side), func(i int) bool {
		return !better((*side)[i].price, o.Price)
	})
	if i < len(*side) && (*side)[i].price.Equal(o.Price) {
		(*side)[i].orders = append((*side)[i].orders, o)
	} else {
		lvl := &level{price: o.Price, orders: []*Order{o}}
		*side = append(*side, nil)
		copy((*side)[i+1:], (*side)[i:])
		(*side)[i] = lvl
	}
	addDepth(depth, o.Price, o.Remaining())
}

// FindOrder scans both sides for the order id.
func (b *Book) FindOrder(orderID string) (*Order, bool) {
	for _, side := range [][]*level{b.bids, b.asks} {
		for _, lvl := range side {
			for _, o := range lvl.orders {
				if o.OrderID == orderID {
					return o, true
				}
			}
		}
	}
	return nil, false
}

// Cancel removes the order from its side and lowers the depth level by the
// unfilled quantity. It returns the removed order, whose price names the
// level the caller must republish.
func (b *Book) Cancel(orderID string) (*Order, error) {
	for s, side := range []*[]*level{&b.bids, &b.asks} {
		depth := b.bidsDepth
		if s == 1 {
			depth = b.asksDepth
		}
		for li, lvl := range *side {
			for oi, o := range lvl.orders {
				if o.OrderID != orderID {
					continue
				}
				lvl.orders = append(lvl.orders[:oi], lvl.orders[oi+1:]...)
				subtractDepth(depth, lvl.price, o.Remaining())
				if len(lvl.orders) == 0 {
					*side = append((*side)[:li], (*side)[li+1:]...)
				}
				return o, nil
			}
		}
	}
	return nil, ErrOrderNotFound
}

// Depth returns the aggregated levels, bids highest first and asks lowest
// first. Reads the maintained maps; never recomputed from the orders.
func (b *Book) Depth() ([][2]string, [][2]string) {
	bids := make([][2]string, 0, len(b.bids))
	for _, lvl := range b.bids {
		key := lvl.price.String()
		bids = append(bids, [2]string{key, b.bidsDepth[key].String()})
	}
	asks := make([][2]string, 0, len(b.asks))
	for _, lvl := range b.asks {
		key := lvl.price.String()
		asks = append(asks, [2]string{key, b.asksDepth[key].String()})
	}
	return bids, asks
}

// DepthAt reports the current aggregate at a price, "0" when the level is
// gone. Used to build depth deltas.
func (b *Book) DepthAt(side schema.Side, price decimal.Decimal) string {
	depth := b.bidsDepth
	if side == schema.SideSell {
		depth = b.asksDepth
	}
	if qty, ok := depth[price.String()]; ok {
		return qty.String()
	}
	return "0"
}

// OpenOrders returns all resting orders owned by the user, asks first.
func (b *Book) OpenOrders(userID string) []*Order {
	var out []*Order
	for _, side := range [][]*level{b.asks, b.bids} {
		for _, lvl := range side {
			for _, o := range lvl.orders {
				if o.UserID == userID {
					out = append(out, o)
				}
			}
		}
	}
	return out
}

// LastTradeID returns the id of the most recent fill.
func (b *Book) LastTradeID() int64 { return b.lastTradeID }

// CurrentPrice is the last traded price, zero before any trade.
func (b *Book) CurrentPrice() decimal.Decimal { return b.currentPrice }

func addDepth(depth map[string]decimal.Decimal, price, qty decimal.Decimal) {
	key := price.String()
	depth[key] = depth[key].Add(qty)
}

func subtractDepth(depth map[string]decimal.Decimal, price, qty decimal.Decimal) {
	key := price.String()
	next := depth[key].Sub(qty)
	if next.IsPositive() {
		depth[key] = next
	} else {
		delete(depth, key)
	}
}
