package schema

import "github.com/shopspring/decimal"

// Event types pushed to the db-sync worker.
const (
	EventTradeAdded    = "TRADE_ADDED"
	EventOrderUpdate   = "ORDER_UPDATE"
	EventBalanceUpdate = "BALANCE_UPDATE"
)

// DBMessage is one discriminated persistence event.
type DBMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type TradeAddedData struct {
	ID            string `json:"id"`
	IsBuyerMaker  bool   `json:"isBuyerMaker"`
	Price         string `json:"price"`
	Quantity      string `json:"quantity"`
	QuoteQuantity string `json:"quoteQuantity"`
	Timestamp     int64  `json:"timestamp"`
	Market        string `json:"market"`
}

// OrderUpdateData is emitted for the taker order (all fields) and for each
// touched maker order (orderId and executedQty only).
type OrderUpdateData struct {
	OrderID     string          `json:"orderId"`
	ExecutedQty decimal.Decimal `json:"executedQty"`
	Market      string          `json:"market,omitempty"`
	Price       string          `json:"price,omitempty"`
	Quantity    string          `json:"quantity,omitempty"`
	Side        Side            `json:"side,omitempty"`
}

type BalanceUpdateData struct {
	UserID    string          `json:"userId"`
	Asset     string          `json:"asset"`
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
}

// StreamMessage is one fan-out event on a per-market channel.
type StreamMessage struct {
	Stream string `json:"stream"`
	Data   any    `json:"data"`
}

// DepthUpdateData is a depth delta. A quantity of "0" means the level is
// gone and subscribers must drop it.
type DepthUpdateData struct {
	Asks  [][2]string `json:"a"`
	Bids  [][2]string `json:"b"`
	Event string      `json:"e"`
}

type TradeStreamData struct {
	Event        string `json:"e"`
	TradeID      int64  `json:"t"`
	IsBuyerMaker bool   `json:"m"`
	Price        string `json:"p"`
	Qty          string `json:"q"`
	Market       string `json:"s"`
}

// DepthStream and TradeStream name the fan-out channels for a market.
func DepthStream(market string) string { return "depth@" + market }
func TradeStream(market string) string { return "trade@" + market }
