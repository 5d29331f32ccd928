package engine

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/Hritul2/exchange-app/internal/orderbook"
	"github.com/Hritul2/exchange-app/internal/schema"
)

func unmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing command data")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(err, "decode command data")
	}
	return nil
}

// emitTrades pushes one TRADE_ADDED per fill to the db-sync stream.
func (e *Engine) emitTrades(fills []orderbook.Fill, market string, takerSide schema.Side) {
	now := e.now().UnixMilli()
	for _, fill := range fills {
		e.pub.PushDB(schema.DBMessage{
			Type: schema.EventTradeAdded,
			Data: schema.TradeAddedData{
				ID:            strconv.FormatInt(fill.TradeID, 10),
				IsBuyerMaker:  takerSide == schema.SideSell,
				Price:         fill.Price.String(),
				Quantity:      fill.Qty.String(),
				QuoteQuantity: fill.Price.Mul(fill.Qty).String(),
				Timestamp:     now,
				Market:        market,
			},
		})
	}
}

// emitOrderUpdates pushes the taker's full update plus one executed-quantity
// update per touched maker order.
func (e *Engine) emitOrderUpdates(order *orderbook.Order, executed decimal.Decimal, fills []orderbook.Fill, market string) {
	e.pub.PushDB(schema.DBMessage{
		Type: schema.EventOrderUpdate,
		Data: schema.OrderUpdateData{
			OrderID:     order.OrderID,
			ExecutedQty: executed,
			Market:      market,
			Price:       order.Price.String(),
			Quantity:    order.Quantity.String(),
			Side:        order.Side,
		},
	})
	for _, fill := range fills {
		e.pub.PushDB(schema.DBMessage{
			Type: schema.EventOrderUpdate,
			Data: schema.OrderUpdateData{OrderID: fill.MakerOrderID, ExecutedQty: fill.Qty},
		})
	}
}

// publishDepthUpdates publishes one delta covering every level this order
// touched: each matched maker level on the opposite side (current aggregate,
// "0" when the matching emptied it) and the taker's own level when a
// remainder rested.
func (e *Engine) publishDepthUpdates(book *orderbook.Book, order *orderbook.Order, fills []orderbook.Fill) {
	opposite := make([][2]string, 0, len(fills))
	seen := make(map[string]struct{}, len(fills))
	for _, fill := range fills {
		key := fill.Price.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		opposite = append(opposite, [2]string{key, book.DepthAt(order.Side.Opposite(), fill.Price)})
	}

	own := [][2]string{}
	if order.Remaining().IsPositive() {
		own = append(own, [2]string{order.Price.String(), book.DepthAt(order.Side, order.Price)})
	}

	data := schema.DepthUpdateData{Event: "depth"}
	if order.Side == schema.SideBuy {
		data.Asks, data.Bids = opposite, own
	} else {
		data.Asks, data.Bids = own, opposite
	}
	e.pub.PublishStream(schema.DepthStream(book.Ticker()), schema.StreamMessage{
		Stream: schema.DepthStream(book.Ticker()),
		Data:   data,
	})
}

// publishDepthAt republishes a single level after a cancellation.
func (e *Engine) publishDepthAt(book *orderbook.Book, side schema.Side, price decimal.Decimal) {
	entry := [][2]string{{price.String(), book.DepthAt(side, price)}}
	data := schema.DepthUpdateData{Event: "depth", Asks: [][2]string{}, Bids: [][2]string{}}
	if side == schema.SideBuy {
		data.Bids = entry
	} else {
		data.Asks = entry
	}
	e.pub.PublishStream(schema.DepthStream(book.Ticker()), schema.StreamMessage{
		Stream: schema.DepthStream(book.Ticker()),
		Data:   data,
	})
}

// publishTrades publishes the trade tape entries for the fan-out server.
func (e *Engine) publishTrades(fills []orderbook.Fill, takerSide schema.Side, market string) {
	for _, fill := range fills {
		e.pub.PublishStream(schema.TradeStream(market), schema.StreamMessage{
			Stream: schema.TradeStream(market),
			Data: schema.TradeStreamData{
				Event:        "trade",
				TradeID:      fill.TradeID,
				IsBuyerMaker: takerSide == schema.SideSell,
				Price:        fill.Price.String(),
				Qty:          fill.Qty.String(),
				Market:       market,
			},
		})
	}
}
