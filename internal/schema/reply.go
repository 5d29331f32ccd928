package schema

import "github.com/shopspring/decimal"

// Reply types published back to the API gateway on the correlation channel.
const (
	ReplyOrderPlaced    = "ORDER_PLACED"
	ReplyOrderCancelled = "ORDER_CANCELLED"
	ReplyDepth          = "DEPTH"
	ReplyOpenOrders     = "OPEN_ORDERS"
	ReplyError          = "ERROR"
)

// MessageToAPI is one reply keyed by the caller correlation id.
type MessageToAPI struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// FillInfo is the caller-visible view of one fill.
type FillInfo struct {
	Price   string          `json:"price"`
	Qty     decimal.Decimal `json:"qty"`
	TradeID int64           `json:"tradeId"`
}

type OrderPlacedPayload struct {
	OrderID     string          `json:"orderId"`
	ExecutedQty decimal.Decimal `json:"executedQty"`
	Fills       []FillInfo      `json:"fills"`
}

type OrderCancelledPayload struct {
	OrderID      string          `json:"orderId"`
	ExecutedQty  decimal.Decimal `json:"executedQty"`
	RemainingQty decimal.Decimal `json:"remainingQty"`
}

// DepthPayload lists [price, aggregate quantity] pairs, bids highest first
// and asks lowest first.
type DepthPayload struct {
	Market string      `json:"market"`
	Bids   [][2]string `json:"bids"`
	Asks   [][2]string `json:"asks"`
}

type OpenOrder struct {
	OrderID     string          `json:"orderId"`
	Price       string          `json:"price"`
	Quantity    string          `json:"quantity"`
	ExecutedQty decimal.Decimal `json:"executedQty"`
	Side        Side            `json:"side"`
	UserID      string          `json:"userId"`
}

type OpenOrdersPayload struct {
	Orders []OpenOrder `json:"orders"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// ErrorReply builds the ERROR reply for a failed command.
func ErrorReply(err error) MessageToAPI {
	msg := "an unknown error occurred"
	if err != nil {
		msg = err.Error()
	}
	return MessageToAPI{Type: ReplyError, Payload: ErrorPayload{Message: msg}}
}
